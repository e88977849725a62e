package models

// Decision is the outcome of the notification policy for one query response.
type Decision string

const (
	DecisionNotify                Decision = "notify"
	DecisionSuppressedEmpty       Decision = "suppressed-empty"
	DecisionSuppressedNotOwner    Decision = "suppressed-not-owner"
	DecisionSuppressedNoWorkspace Decision = "suppressed-no-workspace"
)

func (d Decision) String() string { return string(d) }
