// internal/models/workspace.go
package models

import "slices"

// WorkspaceTag marks a catalog record as a workspace.
const WorkspaceTag = "workspace"

// Workspace is a saved, user-owned collection of subscribed queries.
type Workspace struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Owner              string   `json:"owner"`
	Tags               []string `json:"tags"`
	SubscribedQueryIDs []string `json:"subscribedQueryIds"`
}

func (w *Workspace) IsWorkspace() bool {
	return w != nil && slices.Contains(w.Tags, WorkspaceTag)
}

// CallerIdentity identifies the principal on whose behalf a query runs.
// Identity is the stable identifier compared against Workspace.Owner.
type CallerIdentity struct {
	Identity string `json:"identity"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Subject  string `json:"subject,omitempty"`
}
