// Package clientip resolves the address of the client behind an HTTP
// request and carries it in the request context for logging and rate
// limiting.
//
// Forwarding headers are only honored when listed explicitly, since any
// client can send them when the service is reachable directly:
//
//	ips := clientip.NewResolver("CF-Connecting-IP", "X-Forwarded-For")
//	r.Use(ips.Middleware)
//
// Headers are tried in order; X-Forwarded-For contributes its first valid
// address. RemoteAddr is the fallback. Downstream code reads the result with
// FromContext, and LoggerExtractor adds it to every log record of the
// request.
package clientip
