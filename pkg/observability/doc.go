/*
Package observability exports machine activity as Prometheus metrics.

Metrics plugs into a Machine through its LifecycleHooks:

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	m := moore.New("START", moore.WithLifecycleHooks(metrics.Hooks()))

Turns are counted by state and outcome, transitions by edge, and requests
for undeclared transitions by the state that received them.
*/
package observability
