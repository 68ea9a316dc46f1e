package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/storefront/internal/clock"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"go.uber.org/zap"
)

type stubOrderSvc struct {
	sweeps []time.Time
	expire func(ctx context.Context, now time.Time) (int, error)
}

func (s *stubOrderSvc) Create(context.Context, orderdomain.CreateRequest) (*orderdomain.Response, error) {
	return nil, nil
}
func (s *stubOrderSvc) Get(context.Context, string) (*orderdomain.Response, error) {
	return nil, nil
}
func (s *stubOrderSvc) GetByNumber(context.Context, string) (*orderdomain.Response, error) {
	return nil, nil
}
func (s *stubOrderSvc) List(context.Context, orderdomain.ListRequest) ([]orderdomain.Response, error) {
	return nil, nil
}
func (s *stubOrderSvc) MarkPaid(context.Context, int64, string) (*orderdomain.Response, error) {
	return nil, nil
}
func (s *stubOrderSvc) MarkFailed(context.Context, int64, string) (*orderdomain.Response, error) {
	return nil, nil
}
func (s *stubOrderSvc) MarkRefunded(context.Context, int64) (*orderdomain.Response, error) {
	return nil, nil
}
func (s *stubOrderSvc) UpdateStatus(context.Context, int64, string) (*orderdomain.Response, error) {
	return nil, nil
}
func (s *stubOrderSvc) AttachCheckoutSession(context.Context, int64, string, string) error {
	return nil
}
func (s *stubOrderSvc) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	s.sweeps = append(s.sweeps, now)
	if s.expire != nil {
		return s.expire(ctx, now)
	}
	return 0, nil
}

func newTestScheduler(t *testing.T, svc orderdomain.Service, fake *clock.FakeClock) *Scheduler {
	t.Helper()
	sched, err := New(Params{
		Log:      zap.NewNop(),
		OrderSvc: svc,
		Clock:    fake,
	})
	if err != nil {
		t.Fatalf("New scheduler: %v", err)
	}
	return sched
}

func TestSchedulerRunOnceUsesClockTime(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(start)
	svc := &stubOrderSvc{}
	sched := newTestScheduler(t, svc, fake)

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	fake.Advance(25 * time.Hour)
	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce after advance: %v", err)
	}

	if len(svc.sweeps) != 2 {
		t.Fatalf("expected 2 sweeps, got %d", len(svc.sweeps))
	}
	if !svc.sweeps[0].Equal(start) {
		t.Fatalf("first sweep at %v, want %v", svc.sweeps[0], start)
	}
	if want := start.Add(25 * time.Hour); !svc.sweeps[1].Equal(want) {
		t.Fatalf("second sweep at %v, want %v", svc.sweeps[1], want)
	}
}

func TestSchedulerRunOnceTreatsDeadlineAsSoftTimeout(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := &stubOrderSvc{
		expire: func(ctx context.Context, now time.Time) (int, error) {
			return 3, context.DeadlineExceeded
		},
	}
	sched := newTestScheduler(t, svc, fake)

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("expected soft timeout, got %v", err)
	}
}

func TestSchedulerRunOncePropagatesSweepErrors(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	sweepErr := errors.New("stock release failed")
	svc := &stubOrderSvc{
		expire: func(ctx context.Context, now time.Time) (int, error) {
			return 0, sweepErr
		},
	}
	sched := newTestScheduler(t, svc, fake)

	err := sched.RunOnce(context.Background())
	if err == nil || !errors.Is(err, sweepErr) {
		t.Fatalf("expected sweep error, got %v", err)
	}
}

func TestSchedulerNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
