package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mixelka/metaleads/pkg/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "leads.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestCreateLead_DuplicateMessageID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &models.Lead{
		CustomerID:     "C1",
		EmailMessageID: "abc@mail.example",
		EmailSubject:   "Acme Dental Leads",
		EmailDate:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Info: models.LeadInfo{
			Name:   "John Smith",
			Fields: models.Fields{{Key: "city", Value: "Toronto"}},
		},
	}
	if err := db.CreateLead(ctx, first); err != nil {
		t.Fatalf("CreateLead: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("lead id not set")
	}
	if first.Status != models.LeadStatusNew {
		t.Errorf("status = %q, want new", first.Status)
	}

	second := &models.Lead{CustomerID: "C1", EmailMessageID: "abc@mail.example"}
	if err := db.CreateLead(ctx, second); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("second CreateLead err = %v, want ErrAlreadyExists", err)
	}

	got, err := db.FindLeadByMessageID(ctx, "abc@mail.example")
	if err != nil {
		t.Fatalf("FindLeadByMessageID: %v", err)
	}
	if got.ID != first.ID || got.Info.Name != "John Smith" {
		t.Errorf("found lead = %+v", got)
	}
	if city, _ := got.Info.Fields.Get("city"); city != "Toronto" {
		t.Errorf("city = %q, want Toronto", city)
	}
	if got.Info.Email != "" {
		t.Errorf("email = %q, want empty", got.Info.Email)
	}
}

func TestCreateLead_NoMessageIDNeverDeduplicated(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		lead := &models.Lead{CustomerID: "C1", EmailSubject: "Acme Dental Leads"}
		if err := db.CreateLead(ctx, lead); err != nil {
			t.Fatalf("CreateLead #%d: %v", i, err)
		}
	}

	leads, err := db.ListLeads(ctx, "C1", 10)
	if err != nil {
		t.Fatalf("ListLeads: %v", err)
	}
	if len(leads) != 3 {
		t.Errorf("len(leads) = %d, want 3", len(leads))
	}

	if _, err := db.FindLeadByMessageID(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindLeadByMessageID(\"\") err = %v, want ErrNotFound", err)
	}
}

func TestUpdateLeadStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	lead := &models.Lead{CustomerID: "C1"}
	if err := db.CreateLead(ctx, lead); err != nil {
		t.Fatalf("CreateLead: %v", err)
	}

	if err := db.UpdateLeadStatus(ctx, lead.ID, models.LeadStatusContacted, ""); err != nil {
		t.Fatalf("UpdateLeadStatus: %v", err)
	}
	got, err := db.GetLeadByID(ctx, lead.ID)
	if err != nil {
		t.Fatalf("GetLeadByID: %v", err)
	}
	if got.Status != models.LeadStatusContacted || got.ContactedAt == nil {
		t.Errorf("lead after update = %+v", got)
	}

	if err := db.UpdateLeadStatus(ctx, lead.ID, "archived", ""); err == nil {
		t.Error("expected error for invalid status")
	}
	if err := db.UpdateLeadStatus(ctx, 9999, models.LeadStatusNew, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing lead err = %v, want ErrNotFound", err)
	}
}

func TestSubjectMappings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	m := &models.SubjectMapping{CustomerID: "C1", EmailSubject: "Acme Dental Leads", IsActive: true}
	if err := db.UpsertSubjectMapping(ctx, m); err != nil {
		t.Fatalf("UpsertSubjectMapping: %v", err)
	}
	if m.ID == 0 || m.EmailSubjectLower != "acme dental leads" {
		t.Fatalf("mapping = %+v", m)
	}

	inactive := &models.SubjectMapping{CustomerID: "C2", EmailSubject: "Old Leads", IsActive: false}
	if err := db.UpsertSubjectMapping(ctx, inactive); err != nil {
		t.Fatalf("UpsertSubjectMapping: %v", err)
	}

	// Same subject updates the existing row
	moved := &models.SubjectMapping{CustomerID: "C3", EmailSubject: "Acme Dental Leads", IsActive: true}
	if err := db.UpsertSubjectMapping(ctx, moved); err != nil {
		t.Fatalf("UpsertSubjectMapping: %v", err)
	}
	if moved.ID != m.ID {
		t.Errorf("upsert created new row %d, want %d", moved.ID, m.ID)
	}

	active, err := db.ListActiveSubjectMappings(ctx)
	if err != nil {
		t.Fatalf("ListActiveSubjectMappings: %v", err)
	}
	if len(active) != 1 || active[0].CustomerID != "C3" {
		t.Errorf("active = %+v", active)
	}

	got, err := db.GetSubjectMappingByID(ctx, inactive.ID)
	if err != nil {
		t.Fatalf("GetSubjectMappingByID: %v", err)
	}
	if got.CustomerID != "C2" || got.EmailSubject != "Old Leads" || got.IsActive {
		t.Errorf("mapping = %+v", got)
	}

	if err := db.DeleteSubjectMapping(ctx, inactive.ID); err != nil {
		t.Fatalf("DeleteSubjectMapping: %v", err)
	}
	if _, err := db.GetSubjectMappingByID(ctx, inactive.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete err = %v, want ErrNotFound", err)
	}
	if err := db.DeleteSubjectMapping(ctx, inactive.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}

	all, err := db.ListSubjectMappings(ctx)
	if err != nil {
		t.Fatalf("ListSubjectMappings: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("len(all) = %d, want 1", len(all))
	}
}
