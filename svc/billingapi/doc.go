// Package billingapi mounts the billing service over HTTP: checkout session
// creation, processor webhooks, entitlement and subscription reads, payment
// history, readiness and Prometheus metrics.
//
// Callers authenticate with a bearer JWT whose subject is the account id and
// whose email and email_verified claims gate checkout. Webhook routes are
// unauthenticated and rely on the processor signature.
//
//	api := billingapi.New(svc, resolver, tokens,
//		billingapi.WithLogger(log),
//		billingapi.WithMetrics(metrics, registry),
//		billingapi.WithHealthChecks(httpserver.Check{Name: "postgres", Probe: pg.Healthcheck(pool)}),
//	)
//	srv.Run(ctx, api.Handle())
//
// Errors are written as handler.ErrorBody; MapError decides the status code
// of billing errors.
package billingapi
