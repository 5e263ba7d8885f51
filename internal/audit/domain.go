package audit

import "time"

// Action names a recorded state change.
type Action string

const (
	ActionInvoiceCreated    Action = "invoice.created"
	ActionInvoiceAccepted   Action = "invoice.accepted"
	ActionInvoiceRejected   Action = "invoice.rejected"
	ActionRequiresLinking   Action = "invoice.requires_linking"
	ActionLinked            Action = "invoice.linked"
	ActionNoLinkingAccepted Action = "invoice.no_linking_accepted"
	ActionReminderPostponed Action = "invoice.reminder_postponed"
	ActionAssigneeResolved  Action = "invoice.assignee_resolved"
	ActionLocationResolved  Action = "invoice.location_resolved"
	ActionModuleResolved    Action = "invoice.module_resolved"
	ActionCommentUpdated    Action = "invoice.comment_updated"
	ActionRelationCreated   Action = "relation.created"
	ActionRelationDeleted   Action = "relation.deleted"
)

// Entry is one immutable history row. Actor id and display name are captured
// at write time so later renames or deletions do not rewrite history.
type Entry struct {
	ID         int64
	InvoiceID  int64
	Action     Action
	PrevStatus *string
	NewStatus  *string
	ActorID    int64
	ActorName  string
	Comment    string
	At         time.Time
}
