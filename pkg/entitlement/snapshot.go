package entitlement

import (
	"slices"
	"time"

	"github.com/dmitrymomot/vowbill/pkg/billing"
)

// Snapshot is the resolved feature set of a workspace.
type Snapshot struct {
	WorkspaceID string               `json:"workspace_id"`
	PlanID      string               `json:"plan_id"`
	PlanName    string               `json:"plan_name"`
	DisplayName string               `json:"display_name,omitempty"`
	Features    []billing.FeatureKey `json:"features"`
	// Default is true when the workspace has no active subscription and the
	// catalog default plan applies.
	Default    bool      `json:"default"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// Has reports whether the snapshot grants feature.
func (s Snapshot) Has(feature billing.FeatureKey) bool {
	_, found := slices.BinarySearch(s.Features, feature)
	return found
}

func newSnapshot(workspaceID string, plan billing.Plan, isDefault bool, now time.Time) Snapshot {
	features := slices.Clone(plan.Features)
	slices.Sort(features)
	features = slices.Compact(features)

	return Snapshot{
		WorkspaceID: workspaceID,
		PlanID:      plan.ID,
		PlanName:    plan.Name,
		DisplayName: plan.DisplayName,
		Features:    features,
		Default:     isDefault,
		ResolvedAt:  now,
	}
}
