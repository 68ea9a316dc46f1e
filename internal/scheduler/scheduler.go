package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/internal/providers/slack"
	"github.com/smallbiznis/storefront/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler dependencies are incomplete")

const (
	expireJobName   = "expire_pending"
	lowStockJobName = "low_stock"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	OrderSvc    orderdomain.Service
	Clock       clock.Clock
	DB          *gorm.DB                   `optional:"true"`
	CatalogRepo catalogdomain.Repository   `optional:"true"`
	Slack       slack.Provider             `optional:"true"`
	Limiter     *ratelimit.CheckoutLimiter `optional:"true"`
	Config      Config                     `optional:"true"`
}

// Scheduler sweeps pending orders whose checkout window lapsed and
// releases their reserved stock. It is the only writer that fails
// orders without a provider event. It also watches inventory and
// raises a slack alert when stock runs low.
type Scheduler struct {
	log         *zap.Logger
	cfg         Config
	clock       clock.Clock
	db          *gorm.DB
	orderSvc    orderdomain.Service
	catalogRepo catalogdomain.Repository
	slack       slack.Provider
	limiter     *ratelimit.CheckoutLimiter

	alerted map[int64]bool
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.OrderSvc == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		clock:       p.Clock,
		db:          p.DB,
		orderSvc:    p.OrderSvc,
		catalogRepo: p.CatalogRepo,
		slack:       p.Slack,
		limiter:     p.Limiter,
		alerted:     make(map[int64]bool),
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) (int, error),
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log := s.log.With(zap.String("job", name))
	log.Debug("scheduler.job.start")

	processed, err := fn(ctx)
	fields := []zap.Field{
		zap.Int64("duration_ms", s.clock.Now().Sub(start).Milliseconds()),
		zap.Int("processed_count", processed),
	}
	if err == nil {
		if processed > 0 {
			log.Info("scheduler.job.finish", fields...)
		} else {
			log.Debug("scheduler.job.finish", fields...)
		}
		return nil
	}

	// Deadline is a soft timeout. The sweep picks up where it left off
	// on the next tick.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("scheduler.job.timeout", append(fields, zap.Error(err))...)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// ExpirePendingJob fails lapsed pending orders. When a shared limiter
// is configured, a redis lock keeps concurrent replicas from sweeping
// the same rows.
func (s *Scheduler) ExpirePendingJob(ctx context.Context) (int, error) {
	if s.limiter.Enabled() {
		token, ok, err := s.limiter.TrySweepLock(ctx, expireJobName, s.cfg.LockTTL)
		if err != nil {
			return 0, err
		}
		if !ok {
			s.log.Debug("scheduler.sweep.held", zap.String("job", expireJobName))
			return 0, nil
		}
		defer func() {
			_ = s.limiter.ReleaseSweepLock(context.Background(), expireJobName, token)
		}()
	}
	return s.orderSvc.ExpirePending(ctx, s.clock.Now())
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	return errors.Join(
		s.runJob(parent, expireJobName, s.cfg.SweepTimeout, s.ExpirePendingJob),
		s.runJob(parent, lowStockJobName, s.cfg.SweepTimeout, s.LowStockJob),
	)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
