package notification

import "catalog-gateway/internal/models"

// Decide is the notification policy. The first matching rule wins:
//
//	no results                          -> suppressed-empty
//	no owning workspace                 -> suppressed-no-workspace
//	caller absent or not the owner      -> suppressed-not-owner
//	otherwise                           -> notify
//
// Only the workspace owner is ever notified.
func Decide(resp *models.QueryResponse, ws *models.Workspace, caller *models.CallerIdentity) models.Decision {
	switch {
	case resp.ResultCount() == 0:
		return models.DecisionSuppressedEmpty
	case ws == nil:
		return models.DecisionSuppressedNoWorkspace
	case caller == nil || caller.Identity == "" || caller.Identity != ws.Owner:
		return models.DecisionSuppressedNotOwner
	default:
		return models.DecisionNotify
	}
}
