package notion

import (
	"context"
	"sync"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Property names in the paper database. The title column is fixed by the
// database itself, the rest are created on demand.
const (
	PropName               = "Name"
	PropStatus             = "Status"
	PropVenue              = "Venue"
	PropAdded              = "Added"
	PropAuthors            = "Authors"
	PropYear               = "Year"
	PropAbstract           = "Abstract"
	PropURL                = "userDefined:URL"
	PropPDFLink            = "PDF Link"
	PropDOI                = "DOI"
	PropTags               = "Tags"
	PropCitations          = "Citations"
	PropInfluential        = "Influential Citations"
	PropImpact             = "Impact (2yr mean)"
	PropInstitutions       = "Institutions"
	PropRecommendScore     = "Recommend Score"
	PropRecommendRationale = "Recommend Rationale"
)

// StatusToRead is the status newly ingested papers receive.
const StatusToRead = "To Read"

// managedProperties lists every non-title property the pipeline writes,
// with the config used to create it when absent.
var managedProperties = map[string]notionapi.PropertyConfig{
	PropStatus:             notionapi.SelectPropertyConfig{Type: notionapi.PropertyConfigTypeSelect, Select: notionapi.Select{Options: []notionapi.Option{{Name: StatusToRead}}}},
	PropVenue:              notionapi.SelectPropertyConfig{Type: notionapi.PropertyConfigTypeSelect, Select: notionapi.Select{Options: []notionapi.Option{}}},
	PropAdded:              notionapi.DatePropertyConfig{Type: notionapi.PropertyConfigTypeDate},
	PropAuthors:            notionapi.RichTextPropertyConfig{Type: notionapi.PropertyConfigTypeRichText},
	PropYear:               notionapi.NumberPropertyConfig{Type: notionapi.PropertyConfigTypeNumber},
	PropAbstract:           notionapi.RichTextPropertyConfig{Type: notionapi.PropertyConfigTypeRichText},
	PropURL:                notionapi.URLPropertyConfig{Type: notionapi.PropertyConfigTypeURL},
	PropPDFLink:            notionapi.URLPropertyConfig{Type: notionapi.PropertyConfigTypeURL},
	PropDOI:                notionapi.RichTextPropertyConfig{Type: notionapi.PropertyConfigTypeRichText},
	PropTags:               notionapi.MultiSelectPropertyConfig{Type: notionapi.PropertyConfigTypeMultiSelect, MultiSelect: notionapi.Select{Options: []notionapi.Option{}}},
	PropCitations:          notionapi.NumberPropertyConfig{Type: notionapi.PropertyConfigTypeNumber},
	PropInfluential:        notionapi.NumberPropertyConfig{Type: notionapi.PropertyConfigTypeNumber},
	PropImpact:             notionapi.NumberPropertyConfig{Type: notionapi.PropertyConfigTypeNumber},
	PropInstitutions:       notionapi.MultiSelectPropertyConfig{Type: notionapi.PropertyConfigTypeMultiSelect, MultiSelect: notionapi.Select{Options: []notionapi.Option{}}},
	PropRecommendScore:     notionapi.NumberPropertyConfig{Type: notionapi.PropertyConfigTypeNumber},
	PropRecommendRationale: notionapi.RichTextPropertyConfig{Type: notionapi.PropertyConfigTypeRichText},
}

// Schema tracks which properties exist on the paper database. The set is
// fetched once and cached; EnsureProperties invalidates the cache after a
// schema write so later checks observe the new columns.
type Schema struct {
	client Client
	dbID   string

	mu    sync.Mutex
	props map[string]bool
}

// NewSchema creates a Schema manager for the given database.
func NewSchema(client Client, dbID string) *Schema {
	return &Schema{client: client, dbID: dbID}
}

// Existing returns the set of property names currently on the database,
// fetching it on first use.
func (s *Schema) Existing(ctx context.Context) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.props != nil {
		return s.props, nil
	}

	db, err := s.client.GetDatabase(ctx, s.dbID)
	if err != nil {
		return nil, eris.Wrap(err, "notion: fetch schema")
	}

	props := make(map[string]bool, len(db.Properties))
	for name := range db.Properties {
		props[name] = true
	}
	s.props = props
	return props, nil
}

// EnsureProperties adds every managed property missing from the database.
// Existing properties are never modified, so a hand-tuned select column
// keeps its options.
func (s *Schema) EnsureProperties(ctx context.Context) error {
	existing, err := s.Existing(ctx)
	if err != nil {
		return err
	}

	missing := notionapi.PropertyConfigs{}
	for name, cfg := range managedProperties {
		if !existing[name] {
			missing[name] = cfg
		}
	}
	if len(missing) == 0 {
		return nil
	}

	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	zap.L().Info("notion: adding missing database properties", zap.Strings("properties", names))

	if _, err := s.client.UpdateDatabase(ctx, s.dbID, &notionapi.DatabaseUpdateRequest{
		Properties: missing,
	}); err != nil {
		return eris.Wrap(err, "notion: add properties")
	}

	// Drop the cache so the next read sees the new columns.
	s.mu.Lock()
	s.props = nil
	s.mu.Unlock()
	return nil
}
