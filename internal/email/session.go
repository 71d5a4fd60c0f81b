package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// State is the lifecycle state of a Session
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateEnding
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateEnding:
		return "ending"
	default:
		return "disconnected"
	}
}

// SessionConfig configuration for an IMAP session
type SessionConfig struct {
	Address     string // host:port
	TLS         bool
	Username    string
	Password    string
	DialTimeout time.Duration
	LogoutGrace time.Duration
}

// Session owns a single IMAP connection. Every Connect discards the previous
// connection, so a run never inherits a half-broken one.
type Session struct {
	config SessionConfig
	logger *slog.Logger

	mu     sync.Mutex
	client *client.Client
	state  State
}

// NewSession creates a new IMAP session
func NewSession(cfg SessionConfig, logger *slog.Logger) *Session {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	if cfg.LogoutGrace == 0 {
		cfg.LogoutGrace = 5 * time.Second
	}
	return &Session{
		config: cfg,
		logger: logger.With("component", "imap_session", "mailbox", cfg.Username),
	}
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect opens a fresh connection and logs in
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		if err := s.client.Terminate(); err != nil {
			s.logger.Debug("failed to close previous connection", "error", err)
		}
		s.client = nil
	}

	s.state = StateConnecting
	s.logger.Info("connecting to IMAP server", "server", s.config.Address, "tls", s.config.TLS)

	conn, err := s.dial(ctx)
	if err != nil {
		s.state = StateDisconnected
		return fmt.Errorf("failed to connect: %w", err)
	}

	imapClient, err := client.New(conn)
	if err != nil {
		conn.Close()
		s.state = StateDisconnected
		return fmt.Errorf("failed to create IMAP client: %w", err)
	}

	if err := imapClient.Login(s.config.Username, s.config.Password); err != nil {
		imapClient.Terminate()
		s.state = StateDisconnected
		return fmt.Errorf("failed to login: %w", err)
	}

	s.client = imapClient
	s.state = StateReady
	s.logger.Info("connected to IMAP server")
	return nil
}

func (s *Session) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: s.config.DialTimeout}
	if !s.config.TLS {
		return dialer.DialContext(ctx, "tcp", s.config.Address)
	}

	host, _, err := net.SplitHostPort(s.config.Address)
	if err != nil {
		return nil, err
	}
	tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: host}}
	return tlsDialer.DialContext(ctx, "tcp", s.config.Address)
}

// Disconnect logs out. It never blocks longer than the logout grace period
// and never fails: a connection that does not log out in time is terminated.
func (s *Session) Disconnect(ctx context.Context) {
	s.mu.Lock()
	imapClient := s.client
	if imapClient == nil || s.state == StateDisconnected {
		s.client = nil
		s.state = StateDisconnected
		s.mu.Unlock()
		return
	}
	s.state = StateEnding
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- imapClient.Logout()
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Debug("logout failed", "error", err)
		}
	case <-time.After(s.config.LogoutGrace):
		s.logger.Warn("logout timed out, terminating connection")
		imapClient.Terminate()
	case <-ctx.Done():
		imapClient.Terminate()
	}

	s.mu.Lock()
	if s.client == imapClient {
		s.client = nil
		s.state = StateDisconnected
	}
	s.mu.Unlock()
	s.logger.Info("disconnected from IMAP server")
}

// ListFolders returns every selectable mailbox as a full path, nested
// mailboxes joined by the server's hierarchy delimiter
func (s *Session) ListFolders(ctx context.Context) ([]string, error) {
	c, err := s.ready()
	if err != nil {
		return nil, err
	}

	mailboxes := make(chan *imap.MailboxInfo, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.List("", "*", mailboxes)
	}()

	var infos []*imap.MailboxInfo
	for m := range mailboxes {
		infos = append(infos, m)
	}
	if err := <-done; err != nil {
		return nil, s.fail(fmt.Errorf("failed to list folders: %w", err))
	}

	return FlattenFolders(infos), nil
}

// SelectFolder opens a folder read-write
func (s *Session) SelectFolder(ctx context.Context, name string) error {
	c, err := s.ready()
	if err != nil {
		return err
	}
	if _, err := c.Select(name, false); err != nil {
		return s.fail(fmt.Errorf("failed to select %s: %w", name, err))
	}
	return nil
}

// SearchUnseenSince returns the UIDs of unread messages received on or after since
func (s *Session) SearchUnseenSince(ctx context.Context, since time.Time) ([]uint32, error) {
	c, err := s.ready()
	if err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = since

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, s.fail(fmt.Errorf("failed to search: %w", err))
	}
	return uids, nil
}

// FetchRaw fetches full messages by UID without setting \Seen and calls fn for
// each one as it arrives. raw is nil when the server sent no readable body.
// fn runs on the fetching goroutine and must not block.
func (s *Session) FetchRaw(ctx context.Context, uids []uint32, fn func(uid uint32, raw []byte)) error {
	c, err := s.ready()
	if err != nil {
		return err
	}
	if len(uids) == 0 {
		return nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			s.logger.Warn("message without body", "uid", msg.Uid)
			fn(msg.Uid, nil)
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			s.logger.Warn("failed to read message body", "uid", msg.Uid, "error", err)
			fn(msg.Uid, nil)
			continue
		}
		fn(msg.Uid, raw)
	}

	if err := <-done; err != nil {
		return s.fail(fmt.Errorf("failed to fetch: %w", err))
	}
	return nil
}

// MarkSeen adds the \Seen flag to the given UIDs
func (s *Session) MarkSeen(ctx context.Context, uids []uint32) error {
	c, err := s.ready()
	if err != nil {
		return err
	}
	if len(uids) == 0 {
		return nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}

	if err := c.UidStore(seqSet, item, flags, nil); err != nil {
		return s.fail(fmt.Errorf("failed to mark as read: %w", err))
	}
	return nil
}

// ready returns the live client or an error when the session is not ready
func (s *Session) ready() (*client.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady || s.client == nil {
		return nil, fmt.Errorf("imap session is %s", s.state)
	}
	return s.client, nil
}

// fail drops the connection after a transport error so the next Connect
// starts clean. Protocol errors (NO/BAD) keep the connection.
func (s *Session) fail(err error) error {
	if !IsTransient(err) {
		return err
	}

	s.mu.Lock()
	imapClient := s.client
	s.client = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	s.logger.Warn("connection lost", "error", err)
	if imapClient != nil {
		imapClient.Terminate()
	}
	return err
}
