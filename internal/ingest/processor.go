package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mixelka/metaleads/internal/database"
	"github.com/mixelka/metaleads/pkg/models"
)

// Processor handles the unread messages of one folder
type Processor struct {
	parser   LeadParser
	resolver SubjectResolver
	store    LeadStore
	logger   *slog.Logger
	onLead   LeadHandler
}

// NewProcessor creates a new folder processor
func NewProcessor(p LeadParser, r SubjectResolver, store LeadStore, logger *slog.Logger) *Processor {
	return &Processor{
		parser:   p,
		resolver: r,
		store:    store,
		logger:   logger.With("component", "folder_processor"),
	}
}

// errMissingBody is reported for messages fetched without a readable body
var errMissingBody = errors.New("message body unavailable, left unread")

// messageOutcome is what a single message unit reports back
type messageOutcome struct {
	uid        uint32
	processed  bool
	created    bool
	keepUnread bool
	err        error
}

// ProcessFolder handles unread messages received since the given day. Errors
// are recorded in res; the folder is abandoned but the run goes on.
func (p *Processor) ProcessFolder(ctx context.Context, mb Mailbox, folder string, since time.Time, res *Result) {
	logger := p.logger.With("folder", folder)

	if err := mb.SelectFolder(ctx, folder); err != nil {
		logger.Error("failed to open folder", "error", err)
		res.addError("folder %s: %v", folder, err)
		return
	}

	uids, err := mb.SearchUnseenSince(ctx, since)
	if err != nil {
		logger.Error("failed to search folder", "error", err)
		res.addError("folder %s: %v", folder, err)
		return
	}
	if len(uids) == 0 {
		return
	}

	res.EmailsFound += len(uids)
	logger.Info("found unread messages", "count", len(uids))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []messageOutcome
	)

	fetchErr := mb.FetchRaw(ctx, uids, func(uid uint32, raw []byte) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome := p.processMessage(ctx, logger, uid, raw)

			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
		}()
	})

	// Every unit settles before the read flags are set
	wg.Wait()

	handled := make([]uint32, 0, len(outcomes))
	for _, o := range outcomes {
		if !o.keepUnread {
			handled = append(handled, o.uid)
		}
		if o.processed {
			res.EmailsProcessed++
		}
		if o.created {
			res.LeadsCreated++
		}
		if o.err != nil {
			res.addError("folder %s uid %d: %v", folder, o.uid, o.err)
		}
	}

	if fetchErr != nil {
		logger.Error("failed to fetch messages", "error", fetchErr, "handled", len(handled))
		res.addError("folder %s: %v", folder, fetchErr)
	}

	if len(handled) == 0 {
		return
	}
	slices.Sort(handled)
	if err := mb.MarkSeen(ctx, handled); err != nil {
		// Leads are already stored; a message left unread is deduplicated by
		// its Message-ID on the next run
		logger.Warn("failed to mark messages as read", "error", err, "count", len(handled))
		res.addError("folder %s: mark as read: %v", folder, err)
	}
}

// processMessage parses, routes and stores one message
func (p *Processor) processMessage(ctx context.Context, logger *slog.Logger, uid uint32, raw []byte) (outcome messageOutcome) {
	outcome.uid = uid
	defer func() {
		if r := recover(); r != nil {
			logger.Error("message processing panicked", "uid", uid, "panic", r)
			outcome.err = fmt.Errorf("processing panicked: %v", r)
		}
	}()

	if raw == nil {
		logger.Warn("message body unavailable, leaving unread", "uid", uid)
		outcome.keepUnread = true
		outcome.err = errMissingBody
		return outcome
	}

	parsed := p.parser.Parse(raw)
	outcome.processed = true

	logger = logger.With("uid", uid, "subject", parsed.Subject, "message_id", parsed.MessageID)

	match, ok, err := p.resolver.Resolve(ctx, parsed.Subject)
	if err != nil {
		logger.Error("failed to resolve subject", "error", err)
		outcome.err = err
		return outcome
	}
	if !ok {
		logger.Info("no customer mapped to subject, skipping")
		return outcome
	}

	emailDate := parsed.Date
	if emailDate.IsZero() {
		emailDate = time.Now()
	}

	lead := &models.Lead{
		CustomerID:     match.CustomerID,
		EmailMessageID: parsed.MessageID,
		EmailSubject:   parsed.Subject,
		EmailFrom:      parsed.From,
		EmailDate:      emailDate,
		Info:           parsed.Info,
		Status:         models.LeadStatusNew,
	}

	lead, created, err := p.upsertLead(ctx, lead)
	if err != nil {
		logger.Error("failed to save lead", "error", err, "customer_id", match.CustomerID)
		outcome.err = err
		return outcome
	}
	if !created {
		logger.Debug("lead already exists", "lead_id", lead.ID)
		return outcome
	}

	outcome.created = true
	logger.Info("lead created",
		"lead_id", lead.ID,
		"customer_id", lead.CustomerID,
		"match", match.Kind,
	)
	if p.onLead != nil {
		p.onLead(lead)
	}
	return outcome
}

// upsertLead stores lead unless one with the same Message-ID exists, in
// which case the stored lead is returned untouched. Messages without a
// Message-ID always create a new lead.
func (p *Processor) upsertLead(ctx context.Context, lead *models.Lead) (*models.Lead, bool, error) {
	if lead.EmailMessageID != "" {
		existing, err := p.store.FindLeadByMessageID(ctx, lead.EmailMessageID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, false, err
		}
	}

	err := p.store.CreateLead(ctx, lead)
	if errors.Is(err, database.ErrAlreadyExists) {
		// Lost a race with a concurrent unit carrying the same Message-ID
		existing, err := p.store.FindLeadByMessageID(ctx, lead.EmailMessageID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return lead, true, nil
}
