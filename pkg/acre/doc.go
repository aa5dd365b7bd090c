// Package acre is an adaptive caching and resilience engine for services
// that sit in front of slow or flaky backends.
//
// An Engine bundles four components built from one Config:
//
//   - an adaptive cache that switches between LRU, LFU, TTL-first and a
//     blended adaptive eviction policy, with cache-aside loading
//   - a recovery executor that runs operations through an ordered chain of
//     retry, circuit breaker, fallback, graceful degradation and alert steps
//   - a connection selector that picks the best backend for a query type
//   - a scaling controller that proposes and records scale actions under
//     cooldowns
//
// # Quick Start
//
//	engine, err := acre.New(acre.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Recovery
//
// Run an operation with the configured default chain:
//
//	result, err := engine.Execute(ctx, "database_query", nil,
//	    func(ctx context.Context, args ...any) (any, error) {
//	        return db.Query(ctx, args[0].(string))
//	    }, "SELECT 1")
//
// Or name the chain explicitly:
//
//	strategies := []acre.Strategy{acre.StrategyRetry, acre.StrategyFallback}
//	result, err := engine.Execute(ctx, "database_query", strategies, query)
//
// Degradation strategies return a *DegradedResult instead of an error;
// check with IsDegraded.
//
// # Caching
//
//	var rows []Row
//	hit, err := engine.GetOrLoad(ctx, "database_query", params, &rows,
//	    func(ctx context.Context) (any, error) {
//	        return loadRows(ctx, params)
//	    })
//
// # Observability
//
// Snapshot returns a point-in-time view of every component. With metrics
// enabled the engine publishes it on an interval through DataDog or slog,
// and MetricsHandler exposes it to Prometheus. Alerts and applied scaling
// actions go to the log, to statsd events and optionally to Redis streams.
//
// # Configuration
//
// Load configuration from a JSON or YAML file with ACRE_* environment overrides:
//
//	engine, err := acre.NewFromFile("acre.yaml")
//
// For testing, use the test configuration:
//
//	cfg := acre.TestConfig()
//
// # Thread Safety
//
// All engine operations are safe for concurrent use.
package acre
