// Package requestid attaches a correlation id to every HTTP request.
//
// Middleware reuses a client supplied X-Request-ID header when it is a short
// token of letters, digits, dashes and underscores, and otherwise generates a
// UUID. The id is stored in the request context, echoed in the response
// header and picked up by the logger through LoggerExtractor, so every log
// line of a webhook delivery or checkout call carries the same request_id.
package requestid
