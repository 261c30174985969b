package entitlement

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dmitrymomot/vowbill/pkg/billing"
)

type snapshotCtxKey struct{}

// WithSnapshot stores a resolved snapshot in the context.
func WithSnapshot(ctx context.Context, snap Snapshot) context.Context {
	return context.WithValue(ctx, snapshotCtxKey{}, snap)
}

// FromContext returns the snapshot stored by RequireFeature, if any.
func FromContext(ctx context.Context) (Snapshot, bool) {
	snap, ok := ctx.Value(snapshotCtxKey{}).(Snapshot)
	return snap, ok
}

// WorkspaceFunc extracts the workspace id from a request.
type WorkspaceFunc func(r *http.Request) string

// RequireFeature gates a route on a feature of the request's workspace.
// Requests without a workspace id get 400; workspaces whose plan lacks the
// feature get 402 Payment Required with the feature key in the body.
func RequireFeature(r *Resolver, feature billing.FeatureKey, workspace WorkspaceFunc) func(http.Handler) http.Handler {
	if r == nil {
		panic("entitlement: resolver is required")
	}
	if workspace == nil {
		panic("entitlement: workspace extractor is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			workspaceID := workspace(req)
			if workspaceID == "" {
				writeError(w, http.StatusBadRequest, ErrMissingWorkspace, "missing_workspace", "")
				return
			}

			snap := r.Resolve(req.Context(), workspaceID)
			if !snap.Has(feature) {
				writeError(w, http.StatusPaymentRequired, ErrFeatureNotAvailable, "feature_not_available", feature)
				return
			}

			next.ServeHTTP(w, req.WithContext(WithSnapshot(req.Context(), snap)))
		})
	}
}

type errorBody struct {
	Error   string             `json:"error"`
	Code    string             `json:"code"`
	Feature billing.FeatureKey `json:"feature,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error, code string, feature billing.FeatureKey) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: err.Error(), Code: code, Feature: feature})
}
