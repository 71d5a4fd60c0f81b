// Package ingest polls the leads mailbox and turns unread lead emails into
// Lead records for the customer their subject is mapped to.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/mixelka/metaleads/internal/parser"
	"github.com/mixelka/metaleads/internal/routing"
	"github.com/mixelka/metaleads/pkg/models"
)

// Mailbox is the IMAP session the pipeline drives. Implemented by *email.Session.
type Mailbox interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context)
	ListFolders(ctx context.Context) ([]string, error)
	SelectFolder(ctx context.Context, name string) error
	SearchUnseenSince(ctx context.Context, since time.Time) ([]uint32, error)
	FetchRaw(ctx context.Context, uids []uint32, fn func(uid uint32, raw []byte)) error
	MarkSeen(ctx context.Context, uids []uint32) error
}

// LeadParser extracts a lead from a raw message. Implemented by *parser.LeadParser.
type LeadParser interface {
	Parse(raw []byte) *parser.ParsedEmail
}

// SubjectResolver maps a subject to a customer. Implemented by *routing.Resolver.
type SubjectResolver interface {
	Resolve(ctx context.Context, subject string) (routing.Match, bool, error)
}

// LeadStore persists leads. Implemented by *database.DB.
type LeadStore interface {
	FindLeadByMessageID(ctx context.Context, messageID string) (*models.Lead, error)
	CreateLead(ctx context.Context, lead *models.Lead) error
}

// LeadHandler is called for every newly created lead
type LeadHandler func(lead *models.Lead)

// Result summarizes one check run
type Result struct {
	RunID           string        `json:"runId,omitempty"`
	EmailsFound     int           `json:"emailsFound"`
	EmailsProcessed int           `json:"emailsProcessed"`
	LeadsCreated    int           `json:"leadsCreated"`
	Errors          []string      `json:"errors"`
	Skipped         bool          `json:"skipped"`
	StartedAt       time.Time     `json:"startedAt"`
	Duration        time.Duration `json:"duration"`
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}
