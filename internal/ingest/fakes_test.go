package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mixelka/metaleads/internal/database"
	"github.com/mixelka/metaleads/internal/parser"
	"github.com/mixelka/metaleads/pkg/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMessage struct {
	uid  uint32
	raw  []byte
	seen bool
}

// fakeMailbox is an in-memory Mailbox
type fakeMailbox struct {
	mu       sync.Mutex
	folders  map[string][]*fakeMessage
	order    []string
	selected string

	connectErr   error
	connectGate  chan struct{} // when set, Connect blocks until closed
	connectCalls int
	disconnects  int
	searchErr    map[string]error
	fetchErr     map[string]error
	markErr      error
	marked       map[string][]uint32
	lastSince    time.Time
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{
		folders:   make(map[string][]*fakeMessage),
		searchErr: make(map[string]error),
		fetchErr:  make(map[string]error),
		marked:    make(map[string][]uint32),
	}
}

func (f *fakeMailbox) add(folder string, uid uint32, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.folders[folder]; !ok {
		f.order = append(f.order, folder)
	}
	f.folders[folder] = append(f.folders[folder], &fakeMessage{uid: uid, raw: []byte(raw)})
}

// addMissingBody adds a message the server returns without a body
func (f *fakeMailbox) addMissingBody(folder string, uid uint32) {
	f.add(folder, uid, "")
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.folders[folder]
	msgs[len(msgs)-1].raw = nil
}

func (f *fakeMailbox) markAllUnseen() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msgs := range f.folders {
		for _, m := range msgs {
			m.seen = false
		}
	}
}

func (f *fakeMailbox) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connectCalls++
	gate := f.connectGate
	err := f.connectErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeMailbox) Disconnect(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}

func (f *fakeMailbox) ListFolders(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...), nil
}

func (f *fakeMailbox) SelectFolder(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.folders[name]; !ok {
		return errors.New("NO no such mailbox")
	}
	f.selected = name
	return nil
}

func (f *fakeMailbox) SearchUnseenSince(ctx context.Context, since time.Time) ([]uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSince = since
	if err := f.searchErr[f.selected]; err != nil {
		return nil, err
	}
	var uids []uint32
	for _, m := range f.folders[f.selected] {
		if !m.seen {
			uids = append(uids, m.uid)
		}
	}
	return uids, nil
}

func (f *fakeMailbox) FetchRaw(ctx context.Context, uids []uint32, fn func(uint32, []byte)) error {
	f.mu.Lock()
	var batch []*fakeMessage
	for _, m := range f.folders[f.selected] {
		for _, uid := range uids {
			if m.uid == uid {
				batch = append(batch, m)
			}
		}
	}
	err := f.fetchErr[f.selected]
	f.mu.Unlock()

	for _, m := range batch {
		fn(m.uid, m.raw)
	}
	return err
}

func (f *fakeMailbox) MarkSeen(ctx context.Context, uids []uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.marked[f.selected] = append(f.marked[f.selected], uids...)
	for _, m := range f.folders[f.selected] {
		for _, uid := range uids {
			if m.uid == uid {
				m.seen = true
			}
		}
	}
	return nil
}

func (f *fakeMailbox) markedUIDs(folder string) []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]uint32(nil), f.marked[folder]...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// memStore is an in-memory LeadStore with a unique Message-ID constraint
type memStore struct {
	mu    sync.Mutex
	leads []*models.Lead
	err   error
}

func (s *memStore) FindLeadByMessageID(ctx context.Context, id string) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, l := range s.leads {
		if id != "" && l.EmailMessageID == id {
			return l, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *memStore) CreateLead(ctx context.Context, lead *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, l := range s.leads {
		if lead.EmailMessageID != "" && l.EmailMessageID == lead.EmailMessageID {
			return database.ErrAlreadyExists
		}
	}
	lead.ID = int64(len(s.leads) + 1)
	s.leads = append(s.leads, lead)
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.leads)
}

// panickingParser panics on messages containing a marker
type panickingParser struct {
	inner  *parser.LeadParser
	marker string
}

func (p *panickingParser) Parse(raw []byte) *parser.ParsedEmail {
	if p.marker != "" && bytes.Contains(raw, []byte(p.marker)) {
		panic("parser exploded")
	}
	return p.inner.Parse(raw)
}
