package ai

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// LimitedOracle bounds concurrent oracle calls and applies a per-call
// deadline. Everything else is delegated unchanged.
type LimitedOracle struct {
	inner   Oracle
	sem     *semaphore.Weighted
	timeout time.Duration
}

// Limit wraps inner so at most maxInflight calls run at once, each bounded
// by timeout.
func Limit(inner Oracle, maxInflight int, timeout time.Duration) *LimitedOracle {
	if maxInflight < 1 {
		maxInflight = 1
	}
	return &LimitedOracle{
		inner:   inner,
		sem:     semaphore.NewWeighted(int64(maxInflight)),
		timeout: timeout,
	}
}

func (l *LimitedOracle) Name() string {
	return l.inner.Name()
}

func (l *LimitedOracle) ClassifyEmails(ctx context.Context, batch []EmailInput) (map[string]EmailVerdict, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return l.inner.ClassifyEmails(callCtx, batch)
}

func (l *LimitedOracle) ScoreLinks(ctx context.Context, batch LinkBatch) ([]LinkScore, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return l.inner.ScoreLinks(callCtx, batch)
}
