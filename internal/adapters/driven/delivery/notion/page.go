package notion

import (
	"net/url"
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

// PageRequest builds the create request for one digest item.
func PageRequest(databaseID string, profile domain.RecipientProfile, item domain.DeliveredItem, day time.Time) *notionapi.PageCreateRequest {
	a := item.Analysis
	lang := profile.Language
	date := notionapi.Date(day)

	props := notionapi.Properties{
		PropTitle:    notionapi.TitleProperty{Title: richText(item.TitleIn(lang))},
		PropCategory: notionapi.SelectProperty{Select: notionapi.Option{Name: orDefault(a.CategoryTag, "Other")}},
		PropSummary:  notionapi.RichTextProperty{RichText: richText(item.SummaryIn(lang))},
		PropCoreTech: notionapi.MultiSelectProperty{MultiSelect: Tags(a.CoreTechPoints)},
		PropSource:   notionapi.SelectProperty{Select: notionapi.Option{Name: orDefault(item.SourceName, "Unknown")}},
		PropDate:     notionapi.DateProperty{Date: &notionapi.DateObject{Start: &date}},
		PropTools:    notionapi.RichTextProperty{RichText: richText(a.ToolStack)},
		PropProfile:  notionapi.SelectProperty{Select: notionapi.Option{Name: profile.ID}},
		PropScore:    notionapi.NumberProperty{Number: float64(item.Score)},
	}
	if item.URL != "" {
		props[PropURL] = notionapi.URLProperty{URL: item.URL}
	}

	return &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: props,
		Children:   pageBody(profile, item),
	}
}

func pageBody(profile domain.RecipientProfile, item domain.DeliveredItem) []notionapi.Block {
	a := item.Analysis
	blocks := []notionapi.Block{
		heading2(orDefault(a.TitleEN, item.Title)),
		heading3("Summary"),
	}
	for _, s := range []string{a.SummaryEN, a.SummaryZH, a.SummaryDE} {
		if s != "" {
			blocks = append(blocks, paragraph(s))
		}
	}

	sections := []struct{ title, body string }{
		{"Core technology", a.CoreTechPoints},
		{"German market context", a.GermanContext},
		{"Tool stack", a.ToolStack},
	}
	if a.Student != nil {
		sections = append(sections, struct{ title, body string }{"In simple terms", a.Student.SimpleExplanation})
	}
	if a.Technician != nil {
		sections = append(sections, struct{ title, body string }{"Für die Praxis", a.Technician.AnalysisDE})
	}
	for _, s := range sections {
		if s.body == "" {
			continue
		}
		blocks = append(blocks, heading3(s.title), paragraph(s.body))
	}

	blocks = append(blocks, notionapi.DividerBlock{
		BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeDivider},
		Divider:    notionapi.Divider{},
	})
	if item.URL != "" {
		blocks = append(blocks, paragraph("Original: "+item.URL))
	}
	blocks = append(blocks, paragraph("Source: "+orDefault(item.SourceName, item.SourceID)))
	if item.Backfill {
		blocks = append(blocks, paragraph("Re-surfaced for "+profile.ID))
	}
	return blocks
}

func heading2(text string) notionapi.Block {
	return notionapi.Heading2Block{
		BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeHeading2},
		Heading2:   notionapi.Heading{RichText: richText(text)},
	}
}

func heading3(text string) notionapi.Block {
	return notionapi.Heading3Block{
		BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeHeading3},
		Heading3:   notionapi.Heading{RichText: richText(text)},
	}
}

func paragraph(text string) notionapi.Block {
	return notionapi.ParagraphBlock{
		BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeParagraph},
		Paragraph:  notionapi.Paragraph{RichText: richText(text)},
	}
}

func richText(text string) []notionapi.RichText {
	return []notionapi.RichText{{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: clip(text, maxText)},
	}}
}

func clip(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// NormalizeURL lower-cases scheme and host, sorts query parameters and drops
// the fragment and trailing slashes, so equivalent links compare equal.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	if u.Path == "" {
		u.Path = "/"
	}

	u.RawQuery = u.Query().Encode()
	return u.String()
}
