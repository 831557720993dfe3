package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/config"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/repository"
)

// SweepReport counts what one sweep did
type SweepReport struct {
	Examined int `json:"examined"`
	Resolved int `json:"resolved"`
	Expired  int `json:"expired"`
	Pending  int `json:"pending"`
	Errors   int `json:"errors"`
}

// Sweeper resolves transactions whose callback is overdue
type Sweeper struct {
	ledger      repository.TransactionRepository
	status      *StatusService
	now         func() time.Time
	logger      *slog.Logger
	policy      RetryPolicy
	deadline    time.Duration
	batchSize   int
	concurrency int
}

// NewSweeper creates a new Sweeper
func NewSweeper(
	ledger repository.TransactionRepository,
	status *StatusService,
	lifecycle *config.LifecycleConfig,
	policy RetryPolicy,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		ledger:      ledger,
		status:      status,
		now:         time.Now,
		logger:      logger.With("component", "sweeper"),
		policy:      policy,
		deadline:    lifecycle.CallbackDeadline,
		batchSize:   lifecycle.SweepBatchSize,
		concurrency: lifecycle.SweepConcurrency,
	}
}

// SweepOnce examines up to one batch of PENDING transactions older than the
// callback deadline, querying them concurrently.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	pending, err := s.ledger.ListPending(ctx, s.now().Add(-s.deadline), s.batchSize)
	if err != nil {
		return report, internalError("failed to list pending transactions", err)
	}
	if len(pending) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, tx := range pending {
		g.Go(func() error {
			outcome := s.sweepOne(gctx, tx)
			sweepCounter.WithLabelValues(outcome).Inc()

			mu.Lock()
			defer mu.Unlock()
			report.Examined++
			switch outcome {
			case "resolved":
				report.Resolved++
			case "expired":
				report.Expired++
			case "pending":
				report.Pending++
			default:
				report.Errors++
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers report through the sweep report

	s.logger.InfoContext(ctx, "sweep finished",
		"examined", report.Examined,
		"resolved", report.Resolved,
		"expired", report.Expired,
		"pending", report.Pending,
		"errors", report.Errors,
	)
	return report, ctx.Err()
}

func (s *Sweeper) sweepOne(ctx context.Context, tx *models.Transaction) string {
	var res *StatusResult
	err := s.policy.Do(ctx, func() error {
		r, err := s.status.resolve(ctx, tx, SourceSweeper)
		if err != nil {
			return err
		}
		res = r
		return nil
	})

	if err != nil {
		if ctx.Err() == nil && s.status.HardExpired(tx) {
			expired, eerr := s.status.Expire(ctx, tx, SourceSweeper)
			if eerr == nil {
				return outcomeOf(expired)
			}
			err = eerr
		}
		s.logger.WarnContext(ctx, "failed to resolve pending transaction",
			"transaction_id", tx.ID,
			"error", err,
		)
		return "error"
	}
	return outcomeOf(res)
}

func outcomeOf(res *StatusResult) string {
	switch {
	case res.Pending:
		return "pending"
	case res.Transaction.State == models.TransactionStateExpired:
		return "expired"
	default:
		return "resolved"
	}
}

// Run sweeps every interval until ctx is done
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "sweeper started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "sweep failed", "error", err)
			}
		}
	}
}
