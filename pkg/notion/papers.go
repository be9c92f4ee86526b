package notion

import (
	"context"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vla-lab/paperflow/internal/model"
)

// maxTextLen caps rich text and title payloads. Notion rejects blocks over
// 2000 characters.
const maxTextLen = 2000

// listPageSize is the Notion maximum per query.
const listPageSize = 100

// PaperDB reads and writes paper pages in one Notion database.
type PaperDB struct {
	client Client
	dbID   string
	schema *Schema
}

// NewPaperDB creates a PaperDB over the given database.
func NewPaperDB(client Client, dbID string) *PaperDB {
	return &PaperDB{
		client: client,
		dbID:   dbID,
		schema: NewSchema(client, dbID),
	}
}

// EnsureSchema adds any managed properties missing from the database.
func (db *PaperDB) EnsureSchema(ctx context.Context) error {
	return db.schema.EnsureProperties(ctx)
}

// Exists reports whether a page already matches the paper by exact title,
// identifier or URL. The API accepts rich_text conditions on title and url
// properties, which keeps the filter within one condition type.
func (db *PaperDB) Exists(ctx context.Context, paper model.Paper) (bool, error) {
	var or notionapi.OrCompoundFilter

	if title := strings.TrimSpace(paper.Title); title != "" {
		or = append(or, notionapi.PropertyFilter{
			Property: PropName,
			RichText: &notionapi.TextFilterCondition{Equals: truncate(title)},
		})
	}
	if id := strings.TrimSpace(paper.Identifier); id != "" {
		or = append(or, notionapi.PropertyFilter{
			Property: PropDOI,
			RichText: &notionapi.TextFilterCondition{Equals: id},
		})
	}
	if paper.URL != "" {
		or = append(or, notionapi.PropertyFilter{
			Property: PropURL,
			RichText: &notionapi.TextFilterCondition{Equals: paper.URL},
		})
	}
	if len(or) == 0 {
		return false, nil
	}

	resp, err := db.client.QueryDatabase(ctx, db.dbID, &notionapi.DatabaseQueryRequest{
		Filter:   or,
		PageSize: 1,
	})
	if err != nil {
		return false, eris.Wrap(err, "notion: dedup query")
	}
	return len(resp.Results) > 0, nil
}

// FilterNew returns the papers with no matching page yet, preserving input
// order. A failed dedup query keeps the paper out of the result so a flaky
// check cannot create duplicates.
func (db *PaperDB) FilterNew(ctx context.Context, papers []model.Paper) ([]model.Paper, error) {
	var fresh []model.Paper
	for _, p := range papers {
		exists, err := db.Exists(ctx, p)
		if err != nil {
			zap.L().Warn("notion: dedup check failed, skipping paper",
				zap.String("title", p.Title), zap.Error(err))
			continue
		}
		if exists {
			zap.L().Debug("notion: duplicate skipped", zap.String("title", p.Title))
			continue
		}
		fresh = append(fresh, p)
	}
	return fresh, nil
}

// Create inserts the paper as a new page and returns its page id. Long text
// fields are truncated to the Notion block limit.
func (db *PaperDB) Create(ctx context.Context, paper model.Paper) (string, error) {
	now := notionapi.Date(time.Now())

	props := notionapi.Properties{
		PropName:   titleProp(truncate(paper.Title)),
		PropStatus: selectProp(StatusToRead),
		PropAdded: notionapi.DateProperty{
			Type: notionapi.PropertyTypeDate,
			Date: &notionapi.DateObject{Start: &now},
		},
	}

	if len(paper.Authors) > 0 {
		props[PropAuthors] = richTextProp(truncate(strings.Join(paper.Authors, ", ")))
	}
	if paper.Year != 0 {
		props[PropYear] = numberProp(float64(paper.Year))
	}
	if paper.Abstract != "" {
		props[PropAbstract] = richTextProp(truncate(paper.Abstract))
	}
	if paper.URL != "" {
		props[PropURL] = urlProp(paper.URL)
	}
	if paper.PDFURL != "" {
		props[PropPDFLink] = urlProp(paper.PDFURL)
	}
	// The DOI property carries the full normalized identifier, DOI or
	// "arXiv:<id>", the same string the dedup filter matches on.
	if id := strings.TrimSpace(paper.Identifier); id != "" {
		props[PropDOI] = richTextProp(id)
	}
	if paper.Venue != "" {
		props[PropVenue] = selectProp(paper.Venue)
	}
	if len(paper.Tags) > 0 {
		props[PropTags] = multiSelectProp(paper.Tags)
	}
	if len(paper.Institutions) > 0 {
		props[PropInstitutions] = multiSelectProp(paper.Institutions)
	}
	if paper.Citations != nil {
		props[PropCitations] = numberProp(float64(*paper.Citations))
	}
	if paper.InfluentialCitations != nil {
		props[PropInfluential] = numberProp(float64(*paper.InfluentialCitations))
	}
	if paper.Impact != nil {
		props[PropImpact] = numberProp(*paper.Impact)
	}
	if paper.RecommendScore != nil {
		props[PropRecommendScore] = numberProp(*paper.RecommendScore)
	}
	if paper.RecommendRationale != "" {
		props[PropRecommendRationale] = richTextProp(truncate(paper.RecommendRationale))
	}

	page, err := db.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(db.dbID),
		},
		Properties: props,
	})
	if err != nil {
		return "", eris.Wrap(err, "notion: create paper page")
	}
	return string(page.ID), nil
}

// Patch updates a subset of properties on an existing page.
func (db *PaperDB) Patch(ctx context.Context, pageID string, props notionapi.Properties) error {
	if len(props) == 0 {
		return nil
	}
	_, err := db.client.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{
		Properties: props,
	})
	if err != nil {
		return eris.Wrap(err, "notion: patch paper page")
	}
	return nil
}

// PatchPDFLink sets the PDF Link property.
func (db *PaperDB) PatchPDFLink(ctx context.Context, pageID, pdfURL string) error {
	return db.Patch(ctx, pageID, notionapi.Properties{
		PropPDFLink: urlProp(pdfURL),
	})
}

// PatchCitations writes whichever citation metrics are known.
func (db *PaperDB) PatchCitations(ctx context.Context, pageID string, citations, influential *int, impact *float64) error {
	props := notionapi.Properties{}
	if citations != nil {
		props[PropCitations] = numberProp(float64(*citations))
	}
	if influential != nil {
		props[PropInfluential] = numberProp(float64(*influential))
	}
	if impact != nil {
		props[PropImpact] = numberProp(*impact)
	}
	return db.Patch(ctx, pageID, props)
}

// PatchInstitutions sets the Institutions multi-select.
func (db *PaperDB) PatchInstitutions(ctx context.Context, pageID string, institutions []string) error {
	if len(institutions) == 0 {
		return nil
	}
	return db.Patch(ctx, pageID, notionapi.Properties{
		PropInstitutions: multiSelectProp(institutions),
	})
}

// PatchScore sets the recommendation score and rationale together.
func (db *PaperDB) PatchScore(ctx context.Context, pageID string, score float64, rationale string) error {
	props := notionapi.Properties{
		PropRecommendScore: numberProp(score),
	}
	if rationale != "" {
		props[PropRecommendRationale] = richTextProp(truncate(rationale))
	}
	return db.Patch(ctx, pageID, props)
}

// ListPage fetches one page of up to 100 papers, returning the cursor for
// the next page, or "" when the listing is exhausted.
func (db *PaperDB) ListPage(ctx context.Context, cursor string) ([]model.Paper, string, error) {
	req := &notionapi.DatabaseQueryRequest{
		PageSize: listPageSize,
	}
	if cursor != "" {
		req.StartCursor = notionapi.Cursor(cursor)
	}

	resp, err := db.client.QueryDatabase(ctx, db.dbID, req)
	if err != nil {
		return nil, "", eris.Wrap(err, "notion: list papers")
	}

	papers := make([]model.Paper, 0, len(resp.Results))
	for i := range resp.Results {
		papers = append(papers, fromPage(&resp.Results[i]))
	}

	next := ""
	if resp.HasMore {
		next = string(resp.NextCursor)
	}
	return papers, next, nil
}

// fromPage decodes the properties the backfill pass inspects. A number
// property holding zero decodes as absent: the API reports null and 0 the
// same way through this client, and the stored metrics are never
// legitimately written before the page has been enriched at least once.
func fromPage(page *notionapi.Page) model.Paper {
	paper := model.Paper{PageID: string(page.ID)}

	for name, prop := range page.Properties {
		switch name {
		case PropName:
			if p, ok := prop.(*notionapi.TitleProperty); ok {
				paper.Title = plainText(p.Title)
			}
		case PropAuthors:
			if p, ok := prop.(*notionapi.RichTextProperty); ok {
				if text := plainText(p.RichText); text != "" {
					paper.Authors = splitList(text)
				}
			}
		case PropYear:
			if p, ok := prop.(*notionapi.NumberProperty); ok {
				paper.Year = int(p.Number)
			}
		case PropAbstract:
			if p, ok := prop.(*notionapi.RichTextProperty); ok {
				paper.Abstract = plainText(p.RichText)
			}
		case PropURL:
			if p, ok := prop.(*notionapi.URLProperty); ok {
				paper.URL = p.URL
			}
		case PropPDFLink:
			if p, ok := prop.(*notionapi.URLProperty); ok {
				paper.PDFURL = p.URL
			}
		case PropDOI:
			if p, ok := prop.(*notionapi.RichTextProperty); ok {
				paper.Identifier = plainText(p.RichText)
			}
		case PropVenue:
			if p, ok := prop.(*notionapi.SelectProperty); ok {
				paper.Venue = p.Select.Name
			}
		case PropTags:
			if p, ok := prop.(*notionapi.MultiSelectProperty); ok {
				for _, opt := range p.MultiSelect {
					paper.Tags = append(paper.Tags, opt.Name)
				}
			}
		case PropInstitutions:
			if p, ok := prop.(*notionapi.MultiSelectProperty); ok {
				for _, opt := range p.MultiSelect {
					paper.Institutions = append(paper.Institutions, opt.Name)
				}
			}
		case PropCitations:
			if p, ok := prop.(*notionapi.NumberProperty); ok && p.Number != 0 {
				n := int(p.Number)
				paper.Citations = &n
			}
		case PropInfluential:
			if p, ok := prop.(*notionapi.NumberProperty); ok && p.Number != 0 {
				n := int(p.Number)
				paper.InfluentialCitations = &n
			}
		case PropImpact:
			if p, ok := prop.(*notionapi.NumberProperty); ok && p.Number != 0 {
				v := p.Number
				paper.Impact = &v
			}
		case PropRecommendScore:
			if p, ok := prop.(*notionapi.NumberProperty); ok && p.Number != 0 {
				v := p.Number
				paper.RecommendScore = &v
			}
		case PropRecommendRationale:
			if p, ok := prop.(*notionapi.RichTextProperty); ok {
				paper.RecommendRationale = plainText(p.RichText)
			}
		}
	}

	return paper
}

// --- property constructors and decoders ---

func titleProp(v string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Type:  notionapi.PropertyTypeTitle,
		Title: []notionapi.RichText{textBlock(v)},
	}
}

func richTextProp(v string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		Type:     notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{textBlock(v)},
	}
}

func urlProp(v string) notionapi.URLProperty {
	return notionapi.URLProperty{
		Type: notionapi.PropertyTypeURL,
		URL:  v,
	}
}

func numberProp(v float64) notionapi.NumberProperty {
	return notionapi.NumberProperty{
		Type:   notionapi.PropertyTypeNumber,
		Number: v,
	}
}

func selectProp(v string) notionapi.SelectProperty {
	return notionapi.SelectProperty{
		Type:   notionapi.PropertyTypeSelect,
		Select: notionapi.Option{Name: v},
	}
}

func multiSelectProp(values []string) notionapi.MultiSelectProperty {
	opts := make([]notionapi.Option, 0, len(values))
	for _, v := range values {
		opts = append(opts, notionapi.Option{Name: v})
	}
	return notionapi.MultiSelectProperty{
		Type:        notionapi.PropertyTypeMultiSelect,
		MultiSelect: opts,
	}
}

func textBlock(v string) notionapi.RichText {
	return notionapi.RichText{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: v},
	}
}

func plainText(blocks []notionapi.RichText) string {
	var sb strings.Builder
	for _, b := range blocks {
		sb.WriteString(b.PlainText)
	}
	return strings.TrimSpace(sb.String())
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func truncate(v string) string {
	runes := []rune(v)
	if len(runes) <= maxTextLen {
		return v
	}
	return string(runes[:maxTextLen])
}
