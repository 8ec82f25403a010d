package cashflow

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type GuardConfig struct {
	Timeout     time.Duration // tek çağrı için üst sınır
	MaxFailures uint32        // art arda bu kadar hatada devre açılır
	OpenTimeout time.Duration // açık devrenin yarı açığa geçme süresi
}

func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout:     5 * time.Second,
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
	}
}

// Guarded bounds every call with a timeout and stops calling a failing
// ledger for a while. Any failure comes back as ErrUnavailable so the caller
// can keep the session open and retry later.
type Guarded struct {
	next    Reader
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewGuarded(next Reader, cfg GuardConfig, logger *zap.Logger) *Guarded {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 1
	}

	g := &Guarded{next: next, timeout: cfg.Timeout, logger: logger}
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cashflow-aggregates",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("devre durumu değişti",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return g
}

func (g *Guarded) Aggregates(ctx context.Context, branchID uint, since, until time.Time) (Aggregates, error) {
	res, err := g.cb.Execute(func() (any, error) {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return g.next.Aggregates(callCtx, branchID, since, until)
	})
	if err != nil {
		g.logger.Error("satış/gider özeti alınamadı",
			zap.Uint("branch_id", branchID),
			zap.Time("since", since),
			zap.Time("until", until),
			zap.Error(err),
		)
		return Aggregates{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res.(Aggregates), nil
}

func (g *Guarded) State() gobreaker.State { return g.cb.State() }
