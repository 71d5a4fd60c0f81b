package routing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mixelka/metaleads/pkg/models"
)

// MatchKind tells which rule matched a subject
type MatchKind string

const (
	MatchExact           MatchKind = "exact"
	MatchCaseInsensitive MatchKind = "case_insensitive"
	MatchSubstring       MatchKind = "substring"
)

// Match is a resolved subject mapping
type Match struct {
	CustomerID string
	MappingID  int64
	Kind       MatchKind
}

// MappingSource provides the active subject mappings in stored order
type MappingSource interface {
	ListActiveSubjectMappings(ctx context.Context) ([]models.SubjectMapping, error)
}

// Resolver maps email subjects to customers
type Resolver struct {
	source MappingSource
	logger *slog.Logger
}

// NewResolver creates a new subject resolver
func NewResolver(source MappingSource, logger *slog.Logger) *Resolver {
	return &Resolver{
		source: source,
		logger: logger.With("component", "subject_resolver"),
	}
}

// Resolve returns the customer for subject. ok is false when no active mapping
// matches, which is not an error.
func (r *Resolver) Resolve(ctx context.Context, subject string) (Match, bool, error) {
	mappings, err := r.source.ListActiveSubjectMappings(ctx)
	if err != nil {
		return Match{}, false, fmt.Errorf("failed to load subject mappings: %w", err)
	}

	match, ok := Find(mappings, subject)
	if ok {
		r.logger.Debug("subject resolved",
			"subject", subject,
			"customer_id", match.CustomerID,
			"match", match.Kind,
		)
	}
	return match, ok, nil
}

// Find applies the matching rules to mappings in order: exact, then
// case-insensitive, then substring in either direction. Within a rule the
// first mapping in stored order wins. Inactive mappings are ignored.
func Find(mappings []models.SubjectMapping, subject string) (Match, bool) {
	normalized := Normalize(subject)
	if normalized == "" {
		return Match{}, false
	}
	lower := strings.ToLower(normalized)

	rules := []struct {
		kind  MatchKind
		match func(m *models.SubjectMapping) bool
	}{
		{MatchExact, func(m *models.SubjectMapping) bool {
			return m.EmailSubject == normalized
		}},
		{MatchCaseInsensitive, func(m *models.SubjectMapping) bool {
			return mappingLower(m) == lower
		}},
		{MatchSubstring, func(m *models.SubjectMapping) bool {
			ml := mappingLower(m)
			return ml != "" && (strings.Contains(lower, ml) || strings.Contains(ml, lower))
		}},
	}

	for _, rule := range rules {
		for i := range mappings {
			m := &mappings[i]
			if !m.IsActive || !rule.match(m) {
				continue
			}
			return Match{CustomerID: m.CustomerID, MappingID: m.ID, Kind: rule.kind}, true
		}
	}

	return Match{}, false
}

func mappingLower(m *models.SubjectMapping) string {
	if m.EmailSubjectLower != "" {
		return m.EmailSubjectLower
	}
	return strings.ToLower(m.EmailSubject)
}
