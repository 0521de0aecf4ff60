// Package scheduler runs the periodic renewal and clawback-watch scan: it
// posts due renewal commissions (idempotent against the ledger) and emits
// renewal-due and watch-expiry notices, deduplicated so repeated ticks and
// concurrent instances never re-notify.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"assura/internal/notify"
	policymodels "assura/internal/policy/models"
	schedulermetrics "assura/internal/scheduler/metrics"
	tenantmodels "assura/internal/tenant/models"
	"assura/pkg/dateutil"
	id "assura/pkg/domain"
	"assura/pkg/requestcontext"
)

// TenantLister enumerates the tenants to scan.
type TenantLister interface {
	ListActive(ctx context.Context) ([]*tenantmodels.Tenant, error)
}

// PolicySource is the read side of the policy module used by the scan.
type PolicySource interface {
	List(ctx context.Context, tenantID id.TenantID, filter policymodels.ListFilter) ([]*policymodels.Policy, error)
	RenewalsDue(ctx context.Context, tenantID id.TenantID, daysAhead int) ([]*policymodels.Policy, error)
	ClawbackWatchActive(ctx context.Context, tenantID id.TenantID) ([]*policymodels.Policy, error)
}

// RenewalPoster posts renewal commission for the cycle asOf falls into.
type RenewalPoster interface {
	PostRenewal(ctx context.Context, p *policymodels.Policy, asOf time.Time) error
}

// Config tunes the scan loop.
type Config struct {
	Interval time.Duration
	// DaysAhead is the renewal-due lookahead window.
	DaysAhead int
	// TenantConcurrency bounds parallel tenant scans.
	TenantConcurrency int
	// DedupeTTL is how long an emitted notice key stays suppressed.
	DedupeTTL time.Duration
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.DaysAhead <= 0 {
		c.DaysAhead = 30
	}
	if c.TenantConcurrency <= 0 {
		c.TenantConcurrency = 4
	}
	if c.DedupeTTL <= 0 {
		c.DedupeTTL = 48 * time.Hour
	}
}

// Worker is the scheduler loop.
type Worker struct {
	cfg         Config
	tenants     TenantLister
	policies    PolicySource
	commissions RenewalPoster
	notifier    notify.Notifier
	dedupe      Deduper
	logger      *slog.Logger
	metrics     *schedulermetrics.Metrics
}

// Option configures the Worker.
type Option func(*Worker)

func WithMetrics(m *schedulermetrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

func New(cfg Config, tenants TenantLister, policies PolicySource, commissions RenewalPoster, notifier notify.Notifier, dedupe Deduper, logger *slog.Logger, opts ...Option) *Worker {
	cfg.applyDefaults()
	w := &Worker{
		cfg:         cfg,
		tenants:     tenants,
		policies:    policies,
		commissions: commissions,
		notifier:    notifier,
		dedupe:      dedupe,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run scans immediately, then on every interval tick until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.scan(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			w.scan(ctx, now)
		}
	}
}

// ScanOnce runs a single scan pass at the given time. Exposed for tests and
// for operational one-shot invocation.
func (w *Worker) ScanOnce(ctx context.Context, now time.Time) error {
	return w.scan(ctx, now)
}

func (w *Worker) scan(ctx context.Context, now time.Time) error {
	// The whole scan shares one timestamp, like a single HTTP request does.
	ctx = requestcontext.WithTime(ctx, now)
	tenants, err := w.tenants.ListActive(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "scheduler: failed to list tenants", "error", err)
		if w.metrics != nil {
			w.metrics.ScanErrors.Inc()
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.TenantConcurrency)
	for _, t := range tenants {
		g.Go(func() error {
			return w.scanTenant(gctx, t.ID, now)
		})
	}
	err = g.Wait()
	if w.metrics != nil {
		w.metrics.Scans.Inc()
		if err != nil {
			w.metrics.ScanErrors.Inc()
		}
	}
	if err != nil {
		w.logger.ErrorContext(ctx, "scheduler: scan finished with errors", "error", err)
	}
	return err
}

func (w *Worker) scanTenant(ctx context.Context, tenantID id.TenantID, now time.Time) error {
	if err := w.postRenewals(ctx, tenantID, now); err != nil {
		return err
	}
	if err := w.notifyRenewalsDue(ctx, tenantID, now); err != nil {
		return err
	}
	return w.notifyWatchExpiring(ctx, tenantID, now)
}

// postRenewals backfills renewal commission for every elapsed cycle boundary
// of every in-force policy. Periods already in the ledger are skipped by the
// engine; the dedupe pass just avoids re-attempting settled periods each tick.
func (w *Worker) postRenewals(ctx context.Context, tenantID id.TenantID, now time.Time) error {
	for _, status := range []policymodels.Status{policymodels.StatusActive, policymodels.StatusReinstated} {
		policies, err := w.policies.List(ctx, tenantID, policymodels.ListFilter{Status: status})
		if err != nil {
			return err
		}
		for _, p := range policies {
			if p.RenewalCommissionPct == 0 || p.PremiumFrequency.CycleMonths() == 0 {
				continue
			}
			cycle := p.PremiumFrequency.CycleMonths()
			last := p.RenewalPeriodIndex(now)
			for idx := 1; idx <= last; idx++ {
				boundary := dateutil.AddMonths(dateutil.Truncate(p.InceptionDate), idx*cycle)
				won, err := w.dedupe.Acquire(ctx, "renewal:"+p.ID.String()+":"+boundary.Format("2006-01-02"), w.cfg.DedupeTTL)
				if err != nil {
					return err
				}
				if !won {
					continue
				}
				if err := w.commissions.PostRenewal(ctx, p, boundary); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (w *Worker) notifyRenewalsDue(ctx context.Context, tenantID id.TenantID, now time.Time) error {
	due, err := w.policies.RenewalsDue(ctx, tenantID, w.cfg.DaysAhead)
	if err != nil {
		return err
	}
	for _, p := range due {
		if p.ExpiryDate == nil {
			continue
		}
		notice := notify.Notice{
			Kind:         notify.KindRenewalDue,
			TenantID:     tenantID,
			PolicyID:     p.ID,
			PolicyNumber: p.PolicyNumber,
			DueOn:        dateutil.Truncate(*p.ExpiryDate),
			EmittedAt:    now,
		}
		if err := w.emit(ctx, notice); err != nil {
			return err
		}
	}
	return nil
}

// notifyWatchExpiring flags policies whose clawback watch window closes inside
// the lookahead horizon, so brokers know when retention risk rolls off.
func (w *Worker) notifyWatchExpiring(ctx context.Context, tenantID id.TenantID, now time.Time) error {
	watched, err := w.policies.ClawbackWatchActive(ctx, tenantID)
	if err != nil {
		return err
	}
	horizon := dateutil.AddDays(now, w.cfg.DaysAhead)
	for _, p := range watched {
		if p.ClawbackWatchUntil == nil || p.ClawbackWatchUntil.After(horizon) {
			continue
		}
		notice := notify.Notice{
			Kind:         notify.KindWatchExpiring,
			TenantID:     tenantID,
			PolicyID:     p.ID,
			PolicyNumber: p.PolicyNumber,
			DueOn:        dateutil.Truncate(*p.ClawbackWatchUntil),
			EmittedAt:    now,
		}
		if err := w.emit(ctx, notice); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) emit(ctx context.Context, n notify.Notice) error {
	won, err := w.dedupe.Acquire(ctx, n.DedupeKey(), w.cfg.DedupeTTL)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}
	if err := w.notifier.Publish(ctx, n); err != nil {
		return err
	}
	if w.metrics != nil {
		w.metrics.NoticesEmitted.WithLabelValues(string(n.Kind)).Inc()
	}
	return nil
}
