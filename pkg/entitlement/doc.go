// Package entitlement answers which features a workspace may use.
//
// A Resolver maps the workspace's subscription to a plan of the billing
// catalog and returns a Snapshot of its features. Workspaces without an
// active subscription, with an unknown plan, or whose subscription cannot be
// read get the catalog's default plan, so Resolve never fails.
//
//	resolver := entitlement.NewResolver(store, catalog,
//		entitlement.WithCache(entitlement.NewRedisCache(redis.NewStorage(client, "vowbill:entitlement:"))),
//		entitlement.WithTTL(10*time.Minute),
//	)
//	if resolver.Enabled(ctx, workspaceID, billing.FeatureSeatingChart) {
//		// ...
//	}
//
// Snapshots are cached per workspace (MemoryCache, RedisCache or NoOpCache).
// Concurrent misses for one workspace share a single store read. The billing
// service calls Invalidate after every subscription write; register the
// resolver with billing.WithInvalidator. Purge clears the whole cache and
// belongs after catalog changes.
//
// RequireFeature wraps HTTP handlers and answers 402 Payment Required when
// the plan lacks the feature.
package entitlement
