// internal/submission/bangate.go
//
// Intake – submission pipeline: ban-list gate.
//
// Context
//   The gate is a UX check, not a security boundary.  It asks the ban
//   registry whether an active record matches the submitter's email or
//   canonical phone and returns a plain yes or no.  Every uncertain path
//   fails open:
//
//      •  no identifiers to check  → false, registry not queried.
//      •  registry error/timeout   → false, failure logged at WARN.
//
//   Identical lookups already in flight share one registry round trip.  The
//   shared query runs under the gate timeout only, so one caller giving up
//   does not fail the others; each caller still stops waiting when its own
//   context ends.
//
//------------------------------------------------------------------------------

package submission

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yanizio/intake/internal/logger"
	"github.com/yanizio/intake/internal/metrics"
)

// BanFilter selects ban records.  Empty Email or Phone means that field is
// not part of the match.  When both are set a record matches on either.
type BanFilter struct {
	Email      string
	Phone      string
	ActiveOnly bool
	Limit      int
}

// BanRecord is one block-list entry.
type BanRecord struct {
	ID       int64  `db:"id"`
	Email    string `db:"email"`
	Phone    string `db:"phone"`
	IsActive bool   `db:"is_active"`
}

// BanRegistry answers block-list queries.
type BanRegistry interface {
	Query(ctx context.Context, f BanFilter) ([]BanRecord, error)
}

// BanChecker is what Session needs from the gate.
type BanChecker interface {
	IsBanned(ctx context.Context, email, rawPhone string) bool
}

// BanGate implements BanChecker against a BanRegistry.
type BanGate struct {
	registry BanRegistry
	timeout  time.Duration
	group    singleflight.Group
}

// NewBanGate returns a gate.  timeout ≤ 0 disables the per-query deadline.
func NewBanGate(registry BanRegistry, timeout time.Duration) *BanGate {
	return &BanGate{registry: registry, timeout: timeout}
}

// IsBanned reports whether an active ban record matches email or the
// canonical form of rawPhone.
func (g *BanGate) IsBanned(ctx context.Context, email, rawPhone string) bool {
	id := IdentityOf(Draft{Email: email, Phone: rawPhone})
	if id.Email == "" && id.Phone == "" {
		metrics.BanChecks.WithLabelValues("skipped").Inc()
		return false
	}

	filter := BanFilter{Email: id.Email, Phone: id.Phone, ActiveOnly: true, Limit: 1}

	ch := g.group.DoChan(id.Email+"\x00"+id.Phone, func() (any, error) {
		qctx, cancel := withTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()
		recs, err := g.registry.Query(qctx, filter)
		if err != nil {
			return false, err
		}
		return len(recs) > 0, nil
	})

	var (
		v   any
		err error
	)
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		metrics.BanChecks.WithLabelValues("error").Inc()
		logger.FromContext(ctx).Warnw("ban registry query failed, allowing submission",
			"error", err)
		return false
	}

	banned := v.(bool)
	if banned {
		metrics.BanChecks.WithLabelValues("banned").Inc()
	} else {
		metrics.BanChecks.WithLabelValues("allowed").Inc()
	}
	return banned
}

// withTimeout applies d when positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
