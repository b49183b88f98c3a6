package processor

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/models"
	"golang.org/x/net/html"
)

type ProcessorConfig struct {
	// IgnoreHosts lists hosts (and their subdomains) never taken as a
	// recipe source. Nil selects DefaultIgnoreHosts.
	IgnoreHosts      []string
	IgnoreExtensions []string
	SharingParams    []string
	Logger           *slog.Logger
}

type Processor struct {
	config ProcessorConfig
	logger *slog.Logger
}

// Anomaly records unexpected note markup. It never stops parsing.
type Anomaly struct {
	NoteID string
	Reason string
	Err    error
}

func (a *Anomaly) Error() string {
	if a.Err != nil {
		return fmt.Sprintf("note %s: %s: %v", a.NoteID, a.Reason, a.Err)
	}
	return fmt.Sprintf("note %s: %s", a.NoteID, a.Reason)
}

func (a *Anomaly) Unwrap() error {
	return a.Err
}

func NewWithConfig(config ProcessorConfig) *Processor {
	if config.IgnoreHosts == nil {
		config.IgnoreHosts = DefaultIgnoreHosts
	}
	if config.IgnoreExtensions == nil {
		config.IgnoreExtensions = DefaultIgnoreExtensions
	}
	if config.SharingParams == nil {
		config.SharingParams = DefaultSharingParams
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		config: config,
		logger: logger,
	}
}

func New() *Processor {
	return NewWithConfig(ProcessorConfig{})
}

// Parse turns one note into plain text lines, a source URL, note-derived
// recipe fields and embedded images.
func (p *Processor) Parse(note models.RawNote) models.ExtractedContent {
	var content models.ExtractedContent

	body := strings.TrimSpace(note.Body)
	var doc *goquery.Document
	if body == "" {
		content.Anomalies = append(content.Anomalies, &Anomaly{NoteID: note.ID, Reason: "empty body"})
	} else {
		var err error
		doc, err = goquery.NewDocumentFromReader(strings.NewReader(body))
		if err != nil {
			content.Anomalies = append(content.Anomalies, &Anomaly{NoteID: note.ID, Reason: "unreadable markup", Err: err})
		}
	}

	if doc != nil {
		content.Lines = textLines(doc)
		content.Text = strings.Join(content.Lines, "\n")
	}

	content.SourceURL = p.sourceURL(note, doc, content.Lines)

	for _, res := range note.Resources {
		if !res.IsImage() {
			continue
		}
		if len(res.Data) == 0 {
			content.Anomalies = append(content.Anomalies, &Anomaly{NoteID: note.ID, Reason: "image resource without data " + res.Hash})
			continue
		}
		source := res.FileName
		if source == "" {
			source = res.Hash
		}
		content.Images = append(content.Images, models.Image{
			Data:        res.Data,
			ContentType: res.Mime,
			Source:      "note:" + source,
		})
	}

	lines := content.Lines
	content.Title = strings.TrimSpace(note.Title)
	if content.Title == "" && len(lines) > 0 {
		content.Title = lines[0]
	}
	if len(lines) > 0 && strings.EqualFold(lines[0], content.Title) {
		lines = lines[1:]
	}

	parsed := classify(lines)
	content.Description = parsed.description
	content.Ingredients = parsed.ingredients
	content.Instructions = parsed.instructions
	content.Yield = parsed.yield

	for _, a := range content.Anomalies {
		p.logger.Debug("note anomaly", "note", note.ID, "error", a)
	}
	p.logger.Debug("parsed note",
		"note", note.ID,
		"source_url", content.SourceURL,
		"ingredients", len(content.Ingredients),
		"instructions", len(content.Instructions),
		"images", len(content.Images))

	return content
}

var blockElements = map[string]bool{
	"div": true, "p": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "table": true, "blockquote": true, "pre": true, "hr": true,
	"en-note": true, "section": true, "article": true,
}

type textBuilder struct {
	lines   []string
	current strings.Builder
}

func (b *textBuilder) newline() {
	line := strings.Join(strings.Fields(b.current.String()), " ")
	if line != "" {
		b.lines = append(b.lines, line)
	}
	b.current.Reset()
}

func (b *textBuilder) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		parts := strings.Split(n.Data, "\n")
		for i, part := range parts {
			if i > 0 {
				b.newline()
			}
			b.current.WriteString(part)
		}
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "head", "title":
			return
		case "br":
			b.newline()
			return
		case "en-todo":
			if attr(n, "checked") == "true" {
				b.current.WriteString("✓ ")
			} else {
				b.current.WriteString("☐ ")
			}
		case "en-media", "img":
			b.newline()
		}
	}

	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		b.newline()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.walk(c)
	}
	if block {
		b.newline()
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textLines(doc *goquery.Document) []string {
	b := &textBuilder{}
	for _, n := range doc.Nodes {
		b.walk(n)
	}
	b.newline()
	return b.lines
}
