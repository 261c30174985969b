// Package binder populates request structs from HTTP requests.
//
// Each binder has the signature func(*http.Request, any) error and handles
// one source, so several can be applied to the same struct:
//
//	type PaymentsRequest struct {
//		WorkspaceID string `path:"workspaceID"`
//		Limit       int    `query:"limit"`
//	}
//
//	handler.Wrap(h, handler.WithBinders[PaymentsRequest](
//		binder.Path(chi.URLParam),
//		binder.Query(),
//	))
//
// JSON decodes strict application/json bodies capped at DefaultMaxJSONSize.
// Path and Query understand strings, booleans, numbers, pointers to those and
// slices of those. Failures wrap the package sentinels so callers can map
// them to 400 or 415 responses.
package binder
