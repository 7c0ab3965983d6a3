/*
Package observability provides lifecycle hooks for monitoring the engine.

MetricsHooks records state visits, fallbacks and action executions as
Prometheus metrics; LoggingHooks writes the same events as structured logs.
Combine fans one set of engine hooks out to several consumers.

	metrics, err := observability.NewMetrics(registry)
	if err != nil {
		return err
	}
	hooks := observability.Combine(metrics.Hooks(), observability.LoggingHooks(logger))
	eng, err := colloquy.New(model, colloquy.WithLifecycleHooks(hooks))
*/
package observability
