package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultMonitorLookbackDays is the lookback of scheduled checks: today only
const DefaultMonitorLookbackDays = 1

// ErrInvalidInterval is returned by StartMonitoring for a non-positive interval
var ErrInvalidInterval = errors.New("monitoring interval must be positive")

// Service runs mailbox checks, on demand or on a timer. At most one check
// runs at a time; a check requested while another is in progress is skipped,
// not queued.
type Service struct {
	mailbox   Mailbox
	processor *Processor
	logger    *slog.Logger
	now       func() time.Time

	checking atomic.Bool

	mu           sync.Mutex
	last         *Result
	cancel       context.CancelFunc
	done         chan struct{}
	interval     time.Duration
	lookbackDays int
}

// NewService creates a new ingestion service
func NewService(mailbox Mailbox, processor *Processor, logger *slog.Logger) *Service {
	return &Service{
		mailbox:   mailbox,
		processor: processor,
		logger:    logger.With("component", "ingestion"),
		now:       time.Now,
	}
}

// SetLeadHandler sets the handler for newly created leads
func (s *Service) SetLeadHandler(handler LeadHandler) {
	s.processor.onLead = handler
}

// CheckForNewEmails processes unread messages of the last daysBack days
// (1 means today only) in every folder of the mailbox
func (s *Service) CheckForNewEmails(ctx context.Context, daysBack int) Result {
	if !s.checking.CompareAndSwap(false, true) {
		s.logger.Info("check already in progress, skipping")
		return Result{Skipped: true, Errors: []string{}}
	}
	defer s.checking.Store(false)

	if daysBack < 1 {
		daysBack = 1
	}

	res := Result{
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
		Errors:    []string{},
	}
	logger := s.logger.With("run_id", res.RunID)
	logger.Info("checking for new lead emails", "days_back", daysBack)

	s.run(ctx, logger, daysBack, &res)

	res.Duration = s.now().Sub(res.StartedAt)
	logger.Info("check finished",
		"emails_found", res.EmailsFound,
		"emails_processed", res.EmailsProcessed,
		"leads_created", res.LeadsCreated,
		"errors", len(res.Errors),
		"duration", res.Duration,
	)

	s.mu.Lock()
	last := res
	s.last = &last
	s.mu.Unlock()

	return res
}

func (s *Service) run(ctx context.Context, logger *slog.Logger, daysBack int, res *Result) {
	if err := s.mailbox.Connect(ctx); err != nil {
		logger.Error("failed to connect to mailbox", "error", err)
		res.addError("connect: %v", err)
		return
	}
	defer s.mailbox.Disconnect(context.WithoutCancel(ctx))

	folders, err := s.mailbox.ListFolders(ctx)
	if err != nil {
		logger.Error("failed to list folders", "error", err)
		res.addError("list folders: %v", err)
		return
	}

	since := startOfLookback(s.now(), daysBack)
	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			res.addError("check interrupted: %v", err)
			return
		}
		s.processor.ProcessFolder(ctx, s.mailbox, folder, since, res)
	}
}

// startOfLookback returns midnight of the first day in the window
func startOfLookback(now time.Time, daysBack int) time.Time {
	day := now.AddDate(0, 0, -(daysBack - 1))
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
}

// StartMonitoring runs a check right away and then every interval until
// StopMonitoring is called or ctx is done. Each check looks back
// lookbackDays days; values below 1 mean DefaultMonitorLookbackDays.
// Starting again replaces the running loop.
func (s *Service) StartMonitoring(ctx context.Context, interval time.Duration, lookbackDays int) error {
	if interval <= 0 {
		return fmt.Errorf("%w, got %s", ErrInvalidInterval, interval)
	}
	if lookbackDays < 1 {
		lookbackDays = DefaultMonitorLookbackDays
	}

	s.StopMonitoring()

	s.mu.Lock()
	defer s.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.interval = interval
	s.lookbackDays = lookbackDays

	s.logger.Info("starting mailbox monitoring", "interval", interval, "lookback_days", lookbackDays)
	go s.monitor(loopCtx, interval, lookbackDays, done)
	return nil
}

func (s *Service) monitor(ctx context.Context, interval time.Duration, lookbackDays int, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res := s.CheckForNewEmails(ctx, lookbackDays)
		if res.Skipped {
			s.logger.Debug("scheduled check skipped, another check is running")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// StopMonitoring stops the monitoring loop and waits for a running scheduled
// check to finish
func (s *Service) StopMonitoring() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.interval = 0
	s.lookbackDays = 0
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("mailbox monitoring stopped")
}

// Status describes the service for operators
type Status struct {
	Monitoring   bool
	Interval     time.Duration
	LookbackDays int
	Checking     bool
	Last         *Result
}

// Status returns the current service status
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Monitoring:   s.cancel != nil,
		Interval:     s.interval,
		LookbackDays: s.lookbackDays,
		Checking:     s.checking.Load(),
	}
	if s.last != nil {
		last := *s.last
		st.Last = &last
	}
	return st
}
