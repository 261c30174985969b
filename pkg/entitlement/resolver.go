package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/vowbill/pkg/billing"
	"github.com/dmitrymomot/vowbill/pkg/logger"
)

// DefaultTTL is how long a resolved snapshot is served from cache.
const DefaultTTL = 10 * time.Minute

// SubscriptionReader is the read side of billing.SubscriptionStore.
type SubscriptionReader interface {
	Get(ctx context.Context, workspaceID string) (*billing.Subscription, error)
}

// Resolver derives the feature set of a workspace from its subscription and
// the plan catalog. Results are cached per workspace until the TTL elapses or
// Invalidate is called.
type Resolver struct {
	subs    SubscriptionReader
	catalog *billing.Catalog
	cache   Cache
	ttl     time.Duration
	group   singleflight.Group
	gen     atomic.Uint64
	observe func(hit bool)
	logger  *slog.Logger
	now     func() time.Time
}

// NewResolver creates a Resolver backed by an in-memory cache of 10000
// workspaces unless WithCache says otherwise.
// Panics if subs or catalog is nil.
func NewResolver(subs SubscriptionReader, catalog *billing.Catalog, opts ...Option) *Resolver {
	if subs == nil {
		panic("entitlement: SubscriptionReader is required")
	}
	if catalog == nil {
		panic("entitlement: Catalog is required")
	}

	r := &Resolver{
		subs:    subs,
		catalog: catalog,
		ttl:     DefaultTTL,
		observe: func(bool) {},
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewMemoryCache(10_000)
	}
	return r
}

// Resolve returns the entitlement snapshot of a workspace. It never fails:
// a missing, inactive or unreadable subscription resolves to the default plan.
// Snapshots built after a store error are not cached.
func (r *Resolver) Resolve(ctx context.Context, workspaceID string) Snapshot {
	if workspaceID == "" {
		return r.defaultSnapshot("")
	}

	snap, err := r.cache.Get(ctx, workspaceID)
	if err == nil {
		r.observe(true)
		return snap
	}
	if !errors.Is(err, ErrCacheMiss) {
		r.logger.WarnContext(ctx, "entitlement cache read failed",
			logger.WorkspaceID(workspaceID),
			logger.Error(err),
		)
	}
	r.observe(false)

	v, _, _ := r.group.Do(workspaceID, func() (any, error) {
		return r.load(context.WithoutCancel(ctx), workspaceID), nil
	})
	return v.(Snapshot)
}

// Enabled reports whether the workspace is entitled to feature.
func (r *Resolver) Enabled(ctx context.Context, workspaceID string, feature billing.FeatureKey) bool {
	return r.Resolve(ctx, workspaceID).Has(feature)
}

// Invalidate drops the cached snapshot of a workspace. It implements
// billing.Invalidator and is called after every subscription write.
func (r *Resolver) Invalidate(ctx context.Context, workspaceID string) {
	r.gen.Add(1)
	r.group.Forget(workspaceID)
	if err := r.cache.Delete(ctx, workspaceID); err != nil {
		r.logger.WarnContext(ctx, "failed to invalidate entitlement cache",
			logger.WorkspaceID(workspaceID),
			logger.Error(err),
		)
	}
}

// Purge drops every cached snapshot. Call it when the plan catalog changes,
// since cached snapshots carry the feature sets of the previous catalog.
func (r *Resolver) Purge(ctx context.Context) error {
	r.gen.Add(1)
	if err := r.cache.Clear(ctx); err != nil {
		return fmt.Errorf("purge entitlement cache: %w", err)
	}
	return nil
}

// load reads the subscription and caches the result unless the store failed
// or an invalidation happened while it was reading.
func (r *Resolver) load(ctx context.Context, workspaceID string) Snapshot {
	gen := r.gen.Load()

	snap, cacheable := r.build(ctx, workspaceID)
	if !cacheable || r.gen.Load() != gen {
		return snap
	}
	if err := r.cache.Set(ctx, workspaceID, snap, r.ttl); err != nil {
		r.logger.WarnContext(ctx, "failed to cache entitlement snapshot",
			logger.WorkspaceID(workspaceID),
			logger.Error(err),
		)
	}
	return snap
}

func (r *Resolver) build(ctx context.Context, workspaceID string) (Snapshot, bool) {
	sub, err := r.subs.Get(ctx, workspaceID)
	switch {
	case errors.Is(err, billing.ErrSubscriptionNotFound):
		return r.defaultSnapshot(workspaceID), true
	case err != nil:
		r.logger.ErrorContext(ctx, "failed to load subscription, serving default plan",
			logger.WorkspaceID(workspaceID),
			logger.Error(err),
		)
		return r.defaultSnapshot(workspaceID), false
	case !sub.IsActive():
		return r.defaultSnapshot(workspaceID), true
	}

	plan, ok := r.catalog.Plan(sub.PlanID)
	if !ok {
		r.logger.WarnContext(ctx, "active subscription references unknown plan, serving default plan",
			logger.WorkspaceID(workspaceID),
			logger.PlanID(sub.PlanID),
		)
		return r.defaultSnapshot(workspaceID), true
	}
	return newSnapshot(workspaceID, plan, false, r.now().UTC()), true
}

func (r *Resolver) defaultSnapshot(workspaceID string) Snapshot {
	return newSnapshot(workspaceID, r.catalog.Default(), true, r.now().UTC())
}
