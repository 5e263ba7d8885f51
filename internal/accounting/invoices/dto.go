package invoices

import "time"

// InvoiceResponse is the API shape of an invoice. Amounts render as strings
// to keep exact decimals off the float path.
type InvoiceResponse struct {
	ID               int64      `json:"id"`
	ExternalNumber   *string    `json:"external_number,omitempty"`
	Number           string     `json:"number"`
	IssuedAt         time.Time  `json:"issued_at"`
	SellerTaxID      string     `json:"seller_tax_id"`
	SellerName       string     `json:"seller_name"`
	BuyerTaxID       string     `json:"buyer_tax_id"`
	BuyerName        string     `json:"buyer_name"`
	DocumentType     string     `json:"document_type"`
	Gross            string     `json:"gross"`
	Net              string     `json:"net"`
	VAT              string     `json:"vat"`
	Direction        string     `json:"direction"`
	Source           string     `json:"source"`
	Status           string     `json:"status"`
	PaymentStatus    string     `json:"payment_status"`
	EntityID         *int64     `json:"entity_id,omitempty"`
	AssigneeID       *int64     `json:"assignee_id,omitempty"`
	LocationID       *int64     `json:"location_id,omitempty"`
	Module           *string    `json:"module,omitempty"`
	ItemSummary      string     `json:"item_summary"`
	Comment          string     `json:"comment"`
	RequiresLinking  bool       `json:"requires_linking"`
	LinkingAccepted  bool       `json:"linking_accepted"`
	LinkingRemindAt  *time.Time `json:"linking_remind_at,omitempty"`
	LinkingReminders int        `json:"linking_reminders"`
	RelatedNumber    *string    `json:"related_number,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ToResponse maps the domain invoice onto the API shape.
func ToResponse(inv Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:               inv.ID,
		ExternalNumber:   inv.ExternalNumber,
		Number:           inv.Number,
		IssuedAt:         inv.IssuedAt,
		SellerTaxID:      inv.SellerTaxID,
		SellerName:       inv.SellerName,
		BuyerTaxID:       inv.BuyerTaxID,
		BuyerName:        inv.BuyerName,
		DocumentType:     string(inv.DocumentType),
		Gross:            inv.Gross.String(),
		Net:              inv.Net.String(),
		VAT:              inv.VAT.String(),
		Direction:        string(inv.Direction),
		Source:           string(inv.Source),
		Status:           string(inv.Status),
		PaymentStatus:    string(inv.PaymentStatus),
		EntityID:         inv.EntityID,
		AssigneeID:       inv.AssigneeID,
		LocationID:       inv.LocationID,
		ItemSummary:      inv.ItemSummary,
		Comment:          inv.Comment,
		RequiresLinking:  inv.RequiresLinking,
		LinkingAccepted:  inv.LinkingAccepted,
		LinkingRemindAt:  inv.LinkingRemindAt,
		LinkingReminders: inv.LinkingReminders,
		RelatedNumber:    inv.RelatedNumber,
		CreatedAt:        inv.CreatedAt,
		UpdatedAt:        inv.UpdatedAt,
	}
	if inv.Module != nil {
		m := string(*inv.Module)
		resp.Module = &m
	}
	return resp
}

// ToResponses maps a slice of invoices.
func ToResponses(list []Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, 0, len(list))
	for _, inv := range list {
		out = append(out, ToResponse(inv))
	}
	return out
}
