package scheduler

import (
	"context"
	"fmt"
	"strings"
)

// LowStockJob posts a slack summary of active products at or below the
// configured threshold. A product is alerted once and cleared again
// when a restock lifts it back above the threshold.
func (s *Scheduler) LowStockJob(ctx context.Context) (int, error) {
	if s.cfg.LowStockThreshold <= 0 || s.db == nil || s.catalogRepo == nil || s.slack == nil {
		return 0, nil
	}

	products, err := s.catalogRepo.ListLowStock(ctx, s.db, s.cfg.LowStockThreshold, 50)
	if err != nil {
		return 0, err
	}

	low := make(map[int64]bool, len(products))
	var lines []string
	for i := range products {
		p := &products[i]
		low[p.ID] = true
		if s.alerted[p.ID] {
			continue
		}
		lines = append(lines, fmt.Sprintf("• %s: %d left", p.Name, p.StockQuantity))
		s.alerted[p.ID] = true
	}
	for id := range s.alerted {
		if !low[id] {
			delete(s.alerted, id)
		}
	}

	if len(lines) == 0 {
		return 0, nil
	}

	msg := fmt.Sprintf("Low stock (threshold %d):\n%s",
		s.cfg.LowStockThreshold, strings.Join(lines, "\n"))
	if err := s.slack.PostMessage(ctx, msg); err != nil {
		// Drop the marks so the next sweep retries the alert.
		for _, p := range products {
			delete(s.alerted, p.ID)
		}
		return 0, err
	}
	return len(lines), nil
}
