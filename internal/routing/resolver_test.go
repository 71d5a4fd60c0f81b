package routing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/mixelka/metaleads/pkg/models"
)

type staticSource struct {
	mappings []models.SubjectMapping
	err      error
}

func (s *staticSource) ListActiveSubjectMappings(context.Context) ([]models.SubjectMapping, error) {
	return s.mappings, s.err
}

func mapping(id int64, customer, subject string) models.SubjectMapping {
	subject = Normalize(subject)
	return models.SubjectMapping{
		ID:           id,
		CustomerID:   customer,
		EmailSubject: subject,
		IsActive:     true,
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  Acme   Dental\r\n Leads ": "Acme Dental Leads",
		"\tA\nB\rC":                  "A B C",
		"":                           "",
		"   ":                        "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFind_Precedence(t *testing.T) {
	mappings := []models.SubjectMapping{mapping(1, "C1", "Dental Co Leads")}

	cases := []struct {
		subject string
		kind    MatchKind
	}{
		{"Dental Co Leads", MatchExact},
		{"DENTAL CO LEADS", MatchCaseInsensitive},
		{"RE: Dental Co Leads - urgent", MatchSubstring},
		{"Dental", MatchSubstring},
	}
	for _, tc := range cases {
		m, ok := Find(mappings, tc.subject)
		if !ok {
			t.Errorf("Find(%q) no match", tc.subject)
			continue
		}
		if m.CustomerID != "C1" || m.Kind != tc.kind {
			t.Errorf("Find(%q) = %+v, want C1/%s", tc.subject, m, tc.kind)
		}
	}

	if _, ok := Find(mappings, "Unrelated"); ok {
		t.Error("Find(Unrelated) matched")
	}
	if _, ok := Find(mappings, "   "); ok {
		t.Error("blank subject matched")
	}
}

func TestFind_ExactBeatsEarlierSubstring(t *testing.T) {
	mappings := []models.SubjectMapping{
		mapping(1, "C1", "Leads"),
		mapping(2, "C2", "Acme Leads"),
	}

	m, ok := Find(mappings, "Acme Leads")
	if !ok || m.CustomerID != "C2" || m.Kind != MatchExact {
		t.Errorf("Find = %+v, %v; want exact C2", m, ok)
	}

	// Ambiguous substring: first in stored order wins
	m, ok = Find(mappings, "New Acme Leads today")
	if !ok || m.CustomerID != "C1" {
		t.Errorf("Find = %+v, %v; want substring C1", m, ok)
	}
}

func TestFind_SkipsInactive(t *testing.T) {
	inactive := mapping(1, "C1", "Acme Leads")
	inactive.IsActive = false

	if _, ok := Find([]models.SubjectMapping{inactive}, "Acme Leads"); ok {
		t.Error("inactive mapping matched")
	}
}

func TestResolver_SourceError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewResolver(&staticSource{err: errors.New("db down")}, logger)

	if _, _, err := r.Resolve(context.Background(), "Acme"); err == nil {
		t.Fatal("expected error")
	}
}

func TestResolver_Resolve(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewResolver(&staticSource{mappings: []models.SubjectMapping{mapping(1, "C1", "Acme Dental Leads")}}, logger)

	m, ok, err := r.Resolve(context.Background(), "Acme  Dental\r\nLeads")
	if err != nil || !ok {
		t.Fatalf("Resolve = %+v, %v, %v", m, ok, err)
	}
	if m.Kind != MatchExact {
		t.Errorf("kind = %s, want exact", m.Kind)
	}
}

func TestProperty_NormalizeIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("normalize is idempotent and has no doubled spaces", prop.ForAll(
		func(s string) bool {
			once := Normalize(s)
			if Normalize(once) != once {
				return false
			}
			for i := 1; i < len(once); i++ {
				if once[i] == ' ' && once[i-1] == ' ' {
					return false
				}
			}
			return once == "" || (once[0] != ' ' && once[len(once)-1] != ' ')
		},
		gen.AnyString(),
	))

	properties.Property("a mapping always resolves its own subject in any case", prop.ForAll(
		func(words []string) bool {
			subject := Normalize(joinWords(words))
			if subject == "" {
				return true
			}
			m, ok := Find([]models.SubjectMapping{mapping(1, "C1", subject)}, swapCase(subject))
			return ok && m.CustomerID == "C1"
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func joinWords(words []string) string {
	out := ""
	for _, w := range words {
		out += w + "  "
	}
	return out
}

func swapCase(s string) string {
	b := []byte(s)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z':
			b[i] = c - 32
		case c >= 'A' && c <= 'Z':
			b[i] = c + 32
		}
	}
	return string(b)
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.yaml")
	t.Setenv("ACME_CUSTOMER", "C1")
	content := `mappings:
  - customer_id: ${ACME_CUSTOMER}
    subject: "  Acme   Dental Leads "
    notes: spring campaign
  - customer_id: C2
    subject: Old Leads
    active: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	mappings, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if len(mappings) != 2 {
		t.Fatalf("len = %d, want 2", len(mappings))
	}
	if mappings[0].CustomerID != "C1" || mappings[0].EmailSubject != "Acme Dental Leads" || !mappings[0].IsActive {
		t.Errorf("mappings[0] = %+v", mappings[0])
	}
	if mappings[1].IsActive {
		t.Error("mappings[1] should be inactive")
	}
}

type recordingWriter struct {
	got []models.SubjectMapping
}

func (w *recordingWriter) UpsertSubjectMapping(_ context.Context, m *models.SubjectMapping) error {
	w.got = append(w.got, *m)
	return nil
}

func TestApplySeed_RejectsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.yaml")
	if err := os.WriteFile(path, []byte("mappings:\n  - subject: Acme\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	w := &recordingWriter{}
	if _, err := ApplySeed(context.Background(), w, path); err == nil {
		t.Fatal("expected error for missing customer_id")
	}
	if len(w.got) != 0 {
		t.Errorf("wrote %d mappings, want 0", len(w.got))
	}
}
