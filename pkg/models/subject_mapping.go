package models

import "time"

// SubjectMapping routes lead emails with a given subject to a customer
type SubjectMapping struct {
	ID                int64     `db:"id"`
	CustomerID        string    `db:"customer_id"`
	EmailSubject      string    `db:"email_subject"`       // whitespace-normalized
	EmailSubjectLower string    `db:"email_subject_lower"` // lowercase of EmailSubject
	IsActive          bool      `db:"is_active"`
	Notes             string    `db:"notes"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}
