package models

import "time"

// LeadStatus workflow state of a lead, owned by the CRM side
type LeadStatus string

const (
	LeadStatusNew          LeadStatus = "new"
	LeadStatusContacted    LeadStatus = "contacted"
	LeadStatusNotContacted LeadStatus = "not_contacted"
)

// Valid reports whether s is a known status
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusNotContacted:
		return true
	}
	return false
}

// LeadInfo is the structured content extracted from a lead email.
// An empty string means the value was not found.
type LeadInfo struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Message    string `json:"message,omitempty"`
	RawContent string `json:"rawContent,omitempty"`
	Fields     Fields `json:"fields"`
}

// Lead represents a captured inquiry
type Lead struct {
	ID             int64      `json:"id"`
	CustomerID     string     `json:"customerId"`
	EmailMessageID string     `json:"emailMessageId,omitempty"` // RFC822 Message-ID, may be absent
	EmailSubject   string     `json:"emailSubject"`
	EmailFrom      string     `json:"emailFrom"`
	EmailDate      time.Time  `json:"emailDate"`
	Info           LeadInfo   `json:"leadInfo"`
	Status         LeadStatus `json:"status"`
	StatusReason   string     `json:"statusReason,omitempty"`
	ContactedAt    *time.Time `json:"contactedAt,omitempty"`
	AppointmentAt  *time.Time `json:"appointmentAt,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}
