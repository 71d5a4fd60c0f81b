package routing

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mixelka/metaleads/pkg/models"
)

// seedFile is the YAML layout of a subject mapping seed:
//
//	mappings:
//	  - customer_id: C1
//	    subject: Acme Dental Leads
//	    notes: facebook campaign
type seedFile struct {
	Mappings []struct {
		CustomerID string `yaml:"customer_id"`
		Subject    string `yaml:"subject"`
		Active     *bool  `yaml:"active"`
		Notes      string `yaml:"notes"`
	} `yaml:"mappings"`
}

// MappingWriter stores subject mappings
type MappingWriter interface {
	UpsertSubjectMapping(ctx context.Context, m *models.SubjectMapping) error
}

// LoadSeed reads subject mappings from a YAML file. Environment references
// like ${CUSTOMER_ID} are expanded before parsing.
func LoadSeed(path string) ([]models.SubjectMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mappings file %s: %w", path, err)
	}

	var raw seedFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &raw); err != nil {
		return nil, fmt.Errorf("parse mappings YAML: %w", err)
	}

	mappings := make([]models.SubjectMapping, 0, len(raw.Mappings))
	for i, m := range raw.Mappings {
		subject := Normalize(m.Subject)
		if subject == "" || m.CustomerID == "" {
			return nil, fmt.Errorf("mapping #%d: customer_id and subject are required", i+1)
		}
		active := true
		if m.Active != nil {
			active = *m.Active
		}
		mappings = append(mappings, models.SubjectMapping{
			CustomerID:   m.CustomerID,
			EmailSubject: subject,
			IsActive:     active,
			Notes:        m.Notes,
		})
	}
	return mappings, nil
}

// ApplySeed loads the YAML file and upserts every mapping in it
func ApplySeed(ctx context.Context, w MappingWriter, path string) (int, error) {
	mappings, err := LoadSeed(path)
	if err != nil {
		return 0, err
	}
	for i := range mappings {
		if err := w.UpsertSubjectMapping(ctx, &mappings[i]); err != nil {
			return i, fmt.Errorf("upsert mapping %q: %w", mappings[i].EmailSubject, err)
		}
	}
	return len(mappings), nil
}
