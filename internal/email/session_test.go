package email

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
)

const testLead = "From: Facebook <notification@facebookmail.com>\r\n" +
	"Subject: Acme Dental Leads\r\n" +
	"Message-ID: <lead-1@fb.example>\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"Full Name: John Smith\r\n"

// startServer runs an in-memory IMAP server holding one unseen lead in INBOX
// and returns its address and the lead's UID
func startServer(t *testing.T) (string, uint32) {
	t.Helper()

	be := memory.New()
	user, err := be.Login(nil, "username", "password")
	if err != nil {
		t.Fatalf("backend login: %v", err)
	}
	mbox, err := user.GetMailbox("INBOX")
	if err != nil {
		t.Fatalf("GetMailbox: %v", err)
	}
	if err := mbox.CreateMessage(nil, time.Now(), bytes.NewBufferString(testLead)); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	// The backend seeds one read message; ours gets the next UID
	inbox := mbox.(*memory.Mailbox)
	uid := inbox.Messages[len(inbox.Messages)-1].Uid

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := server.New(be)
	srv.AllowInsecureAuth = true
	go srv.Serve(l)
	t.Cleanup(func() { srv.Close() })

	return l.Addr().String(), uid
}

func newTestSession(addr string) *Session {
	return NewSession(SessionConfig{
		Address:     addr,
		Username:    "username",
		Password:    "password",
		DialTimeout: 5 * time.Second,
		LogoutGrace: time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSession_FetchPeekThenMarkSeen(t *testing.T) {
	addr, uid := startServer(t)
	s := newTestSession(addr)
	ctx := context.Background()

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Disconnect(ctx)
	if s.State() != StateReady {
		t.Fatalf("state = %s, want ready", s.State())
	}

	folders, err := s.ListFolders(ctx)
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	if len(folders) == 0 || folders[0] != "INBOX" {
		t.Fatalf("folders = %v", folders)
	}
	if err := s.SelectFolder(ctx, "INBOX"); err != nil {
		t.Fatalf("SelectFolder: %v", err)
	}

	since := time.Now().AddDate(0, 0, -1)
	uids, err := s.SearchUnseenSince(ctx, since)
	if err != nil {
		t.Fatalf("SearchUnseenSince: %v", err)
	}
	if !slices.Contains(uids, uid) {
		t.Fatalf("search = %v, want %d among them", uids, uid)
	}

	fetched := map[uint32][]byte{}
	if err := s.FetchRaw(ctx, []uint32{uid}, func(u uint32, raw []byte) {
		fetched[u] = raw
	}); err != nil {
		t.Fatalf("FetchRaw: %v", err)
	}
	if raw := fetched[uid]; !strings.Contains(string(raw), "Full Name: John Smith") {
		t.Fatalf("fetched body = %q", raw)
	}

	// Fetching with BODY.PEEK[] leaves the message unread
	uids, err = s.SearchUnseenSince(ctx, since)
	if err != nil {
		t.Fatalf("SearchUnseenSince: %v", err)
	}
	if !slices.Contains(uids, uid) {
		t.Errorf("message %d marked read by fetch, unseen = %v", uid, uids)
	}

	if err := s.MarkSeen(ctx, []uint32{uid}); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	uids, err = s.SearchUnseenSince(ctx, since)
	if err != nil {
		t.Fatalf("SearchUnseenSince: %v", err)
	}
	if slices.Contains(uids, uid) {
		t.Errorf("message %d still unseen after MarkSeen: %v", uid, uids)
	}
}

func TestSession_ReconnectDiscardsPreviousConnection(t *testing.T) {
	addr, _ := startServer(t)
	s := newTestSession(addr)
	ctx := context.Background()

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	old := s.client

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if s.State() != StateReady || s.client == old {
		t.Fatalf("state = %s, client replaced = %v", s.State(), s.client != old)
	}

	select {
	case <-old.LoggedOut():
	case <-time.After(5 * time.Second):
		t.Error("previous connection still open")
	}

	if _, err := s.ListFolders(ctx); err != nil {
		t.Errorf("ListFolders on new connection: %v", err)
	}

	s.Disconnect(ctx)
	s.Disconnect(ctx)
	if s.State() != StateDisconnected {
		t.Errorf("state = %s, want disconnected", s.State())
	}
	if err := s.SelectFolder(ctx, "INBOX"); err == nil {
		t.Error("SelectFolder after Disconnect should fail")
	}
}

func TestSession_LoginFailure(t *testing.T) {
	addr, _ := startServer(t)
	s := newTestSession(addr)
	s.config.Password = "wrong"

	if err := s.Connect(context.Background()); err == nil {
		t.Fatal("Connect with bad password succeeded")
	}
	if s.State() != StateDisconnected {
		t.Errorf("state = %s, want disconnected", s.State())
	}
}
