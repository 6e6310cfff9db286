// Package health serves the gateway's liveness and readiness probes.
//
// Liveness always succeeds while the process serves requests. Readiness runs
// the registered checks concurrently, each under its own timeout. The
// [UpstreamProber] registers a check that reports the result of the latest
// scheduled upstream probe, so readiness requests never wait on the upstream.
//
//	checker := health.New(5 * time.Second)
//	prober, _ := health.NewUpstreamProber(health.ProberConfig{...})
//	checker.RegisterCheck("upstream", prober.Check)
//	_ = prober.Start(ctx)
//	mux.Handle("GET /ready", checker.ReadinessHandler())
package health
