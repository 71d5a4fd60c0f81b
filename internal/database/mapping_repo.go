package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mixelka/metaleads/pkg/models"
)

// ListActiveSubjectMappings returns the active mappings in stored order
func (db *DB) ListActiveSubjectMappings(ctx context.Context) ([]models.SubjectMapping, error) {
	var mappings []models.SubjectMapping
	query := `SELECT * FROM subject_mappings WHERE is_active = true ORDER BY id`
	if err := db.SelectContext(ctx, &mappings, query); err != nil {
		return nil, fmt.Errorf("failed to get active mappings: %w", err)
	}
	return mappings, nil
}

// ListSubjectMappings returns all mappings, active or not
func (db *DB) ListSubjectMappings(ctx context.Context) ([]models.SubjectMapping, error) {
	var mappings []models.SubjectMapping
	if err := db.SelectContext(ctx, &mappings, `SELECT * FROM subject_mappings ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to get mappings: %w", err)
	}
	return mappings, nil
}

// GetSubjectMappingByID returns a mapping by ID
func (db *DB) GetSubjectMappingByID(ctx context.Context, id int64) (*models.SubjectMapping, error) {
	var m models.SubjectMapping
	err := db.GetContext(ctx, &m, `SELECT * FROM subject_mappings WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}
	return &m, nil
}

// UpsertSubjectMapping creates a mapping or updates the one with the same subject.
// The caller passes an already normalized subject; the lowercase form is derived here.
func (db *DB) UpsertSubjectMapping(ctx context.Context, m *models.SubjectMapping) error {
	if m.EmailSubject == "" {
		return fmt.Errorf("mapping subject is empty")
	}
	if m.CustomerID == "" {
		return fmt.Errorf("mapping customer id is empty")
	}

	m.EmailSubjectLower = strings.ToLower(m.EmailSubject)
	now := time.Now()

	query := `
		INSERT INTO subject_mappings (customer_id, email_subject, email_subject_lower, is_active, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email_subject) DO UPDATE SET
			customer_id = excluded.customer_id,
			is_active = excluded.is_active,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`
	if _, err := db.ExecContext(ctx, query,
		m.CustomerID,
		m.EmailSubject,
		m.EmailSubjectLower,
		m.IsActive,
		m.Notes,
		now,
		now,
	); err != nil {
		return fmt.Errorf("failed to upsert mapping: %w", err)
	}

	if err := db.GetContext(ctx, m, `SELECT * FROM subject_mappings WHERE email_subject = ?`, m.EmailSubject); err != nil {
		return fmt.Errorf("failed to reload mapping: %w", err)
	}
	return nil
}

// DeleteSubjectMapping deletes a mapping
func (db *DB) DeleteSubjectMapping(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM subject_mappings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
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
