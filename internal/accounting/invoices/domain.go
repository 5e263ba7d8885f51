package invoices

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates invoice workflow statuses.
type Status string

const (
	StatusNew             Status = "NEW"
	StatusRequiresLinking Status = "REQUIRES_LINKING"
	StatusAccepted        Status = "ACCEPTED"
	StatusRejected        Status = "REJECTED"
)

// Terminal reports whether no further workflow transitions apply.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Direction distinguishes purchase from sale documents.
type Direction string

const (
	DirectionPurchase Direction = "PURCHASE"
	DirectionSale     Direction = "SALE"
)

// Source records where an invoice entered the system.
type Source string

const (
	SourceRegistry Source = "KSEF"
	SourceManual   Source = "MANUAL"
)

// PaymentStatus enumerates settlement states.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "UNPAID"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentPaid    PaymentStatus = "PAID"
)

// DocumentType mirrors the registry document type codes.
type DocumentType string

const (
	DocTypeVAT        DocumentType = "VAT"
	DocTypeCorrection DocumentType = "KOR"
	DocTypeAdvance    DocumentType = "ZAL"
	DocTypeSettlement DocumentType = "ROZ"
)

// NeedsCounterpart reports whether the document type demands a cross-reference
// to another invoice before it is fully processed.
func (t DocumentType) NeedsCounterpart() bool {
	return t == DocTypeCorrection || t == DocTypeSettlement
}

// ModuleType names the domain module an invoice can be converted into.
type ModuleType string

const (
	ModuleFeed    ModuleType = "FEED"
	ModuleGas     ModuleType = "GAS"
	ModuleExpense ModuleType = "EXPENSE"
	ModuleSale    ModuleType = "SALE"
)

// DefaultReminderInterval is applied when a reminder is first scheduled and
// when a postponement does not name its own interval.
const DefaultReminderInterval = 3

var (
	// ErrNoPendingReminder rejects postponement when no reminder is scheduled.
	ErrNoPendingReminder = errors.New("invoices: no pending linking reminder")
)

// Invoice is the aggregate root of the accounting core. ExternalNumber is the
// KSeF reference and, when present, is unique system-wide; manual entries
// carry none.
type Invoice struct {
	ID             int64
	ExternalNumber *string
	Number         string
	IssuedAt       time.Time
	SellerTaxID    string
	SellerName     string
	BuyerTaxID     string
	BuyerName      string
	DocumentType   DocumentType
	Gross          decimal.Decimal
	Net            decimal.Decimal
	VAT            decimal.Decimal
	Direction      Direction
	Source         Source
	Status         Status
	PaymentStatus  PaymentStatus
	EntityID       *int64
	AssigneeID     *int64
	LocationID     *int64
	Module         *ModuleType
	ItemSummary    string
	Comment        string

	RequiresLinking  bool
	LinkingAccepted  bool
	LinkingRemindAt  *time.Time
	LinkingReminders int
	RelatedNumber    *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarkRequiresLinking flags the invoice as needing a cross-reference and
// schedules the first reminder. It reports whether anything changed; calls on
// terminal invoices and invoices already awaiting a link are no-ops.
func (i *Invoice) MarkRequiresLinking(now time.Time) bool {
	if i.Status.Terminal() || i.RequiresLinking {
		return false
	}
	remindAt := now.AddDate(0, 0, DefaultReminderInterval)
	i.RequiresLinking = true
	i.LinkingAccepted = false
	i.LinkingRemindAt = &remindAt
	i.LinkingReminders = 0
	i.Status = StatusRequiresLinking
	return true
}

// MarkLinked clears the linking workflow once a relation naming this invoice
// exists. Linking does not advance the invoice towards acceptance: a document
// that was awaiting its counterpart simply returns to NEW.
func (i *Invoice) MarkLinked() bool {
	if i.Status.Terminal() {
		return false
	}
	changed := i.RequiresLinking || i.LinkingRemindAt != nil || i.LinkingAccepted
	i.RequiresLinking = false
	i.LinkingAccepted = false
	i.LinkingRemindAt = nil
	i.LinkingReminders = 0
	if i.Status == StatusRequiresLinking {
		i.Status = StatusNew
		changed = true
	}
	return changed
}

// AcceptNoLinking records the operator decision that no counterpart exists.
// The persistent LinkingAccepted flag keeps "no link needed" distinguishable
// from "link found" in listings.
func (i *Invoice) AcceptNoLinking() bool {
	if i.Status.Terminal() {
		return false
	}
	changed := i.RequiresLinking || i.LinkingRemindAt != nil || !i.LinkingAccepted
	i.RequiresLinking = false
	i.LinkingAccepted = true
	i.LinkingRemindAt = nil
	if i.Status == StatusRequiresLinking {
		i.Status = StatusNew
		changed = true
	}
	return changed
}

// PostponeReminder moves the pending reminder forward by the given number of
// days and counts the postponement. The counter is deliberately unbounded.
func (i *Invoice) PostponeReminder(days int, now time.Time) error {
	if i.LinkingRemindAt == nil {
		return ErrNoPendingReminder
	}
	if days <= 0 {
		days = DefaultReminderInterval
	}
	next := i.LinkingRemindAt.AddDate(0, 0, days)
	i.LinkingRemindAt = &next
	i.LinkingReminders++
	return nil
}

// Accept transitions a NEW invoice into the terminal ACCEPTED state.
func (i *Invoice) Accept() bool {
	if i.Status != StatusNew {
		return false
	}
	i.Status = StatusAccepted
	return true
}

// Reject transitions a NEW invoice into the terminal REJECTED state.
func (i *Invoice) Reject() bool {
	if i.Status != StatusNew {
		return false
	}
	i.Status = StatusRejected
	return true
}
