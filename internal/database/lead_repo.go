package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mixelka/metaleads/pkg/models"
)

// leadRow is the flat table representation of models.Lead
type leadRow struct {
	ID             int64          `db:"id"`
	CustomerID     string         `db:"customer_id"`
	EmailMessageID sql.NullString `db:"email_message_id"`
	EmailSubject   string         `db:"email_subject"`
	EmailFrom      string         `db:"email_from"`
	EmailDate      sql.NullTime   `db:"email_date"`
	LeadName       sql.NullString `db:"lead_name"`
	LeadEmail      sql.NullString `db:"lead_email"`
	LeadPhone      sql.NullString `db:"lead_phone"`
	LeadMessage    sql.NullString `db:"lead_message"`
	RawContent     sql.NullString `db:"raw_content"`
	Fields         models.Fields  `db:"fields"`
	Status         string         `db:"status"`
	StatusReason   sql.NullString `db:"status_reason"`
	ContactedAt    sql.NullTime   `db:"contacted_at"`
	AppointmentAt  sql.NullTime   `db:"appointment_at"`
	Notes          sql.NullString `db:"notes"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r *leadRow) toModel() *models.Lead {
	lead := &models.Lead{
		ID:             r.ID,
		CustomerID:     r.CustomerID,
		EmailMessageID: r.EmailMessageID.String,
		EmailSubject:   r.EmailSubject,
		EmailFrom:      r.EmailFrom,
		EmailDate:      r.EmailDate.Time,
		Info: models.LeadInfo{
			Name:       r.LeadName.String,
			Email:      r.LeadEmail.String,
			Phone:      r.LeadPhone.String,
			Message:    r.LeadMessage.String,
			RawContent: r.RawContent.String,
			Fields:     r.Fields,
		},
		Status:       models.LeadStatus(r.Status),
		StatusReason: r.StatusReason.String,
		Notes:        r.Notes.String,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if lead.Info.Fields == nil {
		lead.Info.Fields = models.Fields{}
	}
	if r.ContactedAt.Valid {
		t := r.ContactedAt.Time
		lead.ContactedAt = &t
	}
	if r.AppointmentAt.Valid {
		t := r.AppointmentAt.Time
		lead.AppointmentAt = &t
	}
	return lead
}

// CreateLead creates a new lead. A lead whose message id is already stored is
// ignored and ErrAlreadyExists is returned.
func (db *DB) CreateLead(ctx context.Context, lead *models.Lead) error {
	query := `
		INSERT OR IGNORE INTO leads (customer_id, email_message_id, email_subject, email_from, email_date,
			lead_name, lead_email, lead_phone, lead_message, raw_content, fields, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}
	if lead.Info.Fields == nil {
		lead.Info.Fields = models.Fields{}
	}

	var emailDate any
	if !lead.EmailDate.IsZero() {
		emailDate = lead.EmailDate
	}

	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		lead.CustomerID,
		nullString(lead.EmailMessageID),
		lead.EmailSubject,
		lead.EmailFrom,
		emailDate,
		nullString(lead.Info.Name),
		nullString(lead.Info.Email),
		nullString(lead.Info.Phone),
		nullString(lead.Info.Message),
		nullString(lead.Info.RawContent),
		lead.Info.Fields,
		string(lead.Status),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}

	// Check if row was actually inserted (not ignored due to duplicate message id)
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlreadyExists
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	lead.ID = id
	lead.CreatedAt = now
	lead.UpdatedAt = now
	return nil
}

// GetLeadByID returns a lead by ID
func (db *DB) GetLeadByID(ctx context.Context, id int64) (*models.Lead, error) {
	var row leadRow
	err := db.GetContext(ctx, &row, `SELECT * FROM leads WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return row.toModel(), nil
}

// FindLeadByMessageID returns the lead ingested from the given Message-ID
func (db *DB) FindLeadByMessageID(ctx context.Context, messageID string) (*models.Lead, error) {
	if messageID == "" {
		return nil, ErrNotFound
	}

	var row leadRow
	err := db.GetContext(ctx, &row, `SELECT * FROM leads WHERE email_message_id = ?`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find lead: %w", err)
	}
	return row.toModel(), nil
}

// ListLeads returns the most recent leads, optionally for one customer
func (db *DB) ListLeads(ctx context.Context, customerID string, limit int) ([]*models.Lead, error) {
	if limit <= 0 {
		limit = 10
	}

	var rows []leadRow
	var err error
	if customerID == "" {
		err = db.SelectContext(ctx, &rows, `SELECT * FROM leads ORDER BY id DESC LIMIT ?`, limit)
	} else {
		err = db.SelectContext(ctx, &rows, `SELECT * FROM leads WHERE customer_id = ? ORDER BY id DESC LIMIT ?`, customerID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}

	leads := make([]*models.Lead, 0, len(rows))
	for i := range rows {
		leads = append(leads, rows[i].toModel())
	}
	return leads, nil
}

// UpdateLeadStatus changes the workflow status of a lead. Moving to contacted
// stamps contacted_at; moving back to new clears it.
func (db *DB) UpdateLeadStatus(ctx context.Context, id int64, status models.LeadStatus, reason string) error {
	if !status.Valid() {
		return fmt.Errorf("invalid lead status %q", status)
	}

	now := time.Now()
	var contactedAt any
	query := `UPDATE leads SET status = ?, status_reason = ?, contacted_at = ?, updated_at = ? WHERE id = ?`
	switch status {
	case models.LeadStatusContacted:
		contactedAt = now
	case models.LeadStatusNotContacted:
		query = `UPDATE leads SET status = ?, status_reason = ?, contacted_at = COALESCE(?, contacted_at), updated_at = ? WHERE id = ?`
	}

	result, err := db.ExecContext(ctx, query, string(status), nullString(reason), contactedAt, now, id)
	if err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
