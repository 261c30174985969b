// Package httpserver runs an http.Handler with graceful shutdown and exposes
// a JSON health endpoint.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
//
// Run binds the listener before returning control, so address errors surface
// as ErrStart immediately. It blocks until ctx is cancelled or SIGINT/SIGTERM
// arrives, then shuts down within the configured timeout.
//
// HealthCheckHandler reports named readiness probes such as the database
// and Redis pings.
package httpserver
