// Package ingestion prepares tenant-authored content for the knowledge base.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/amitsahu0611/chatbot-sub001/internal/keywords"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
	"github.com/amitsahu0611/chatbot-sub001/pkg/logger"
)

var (
	ErrEmptyQuestion = errors.New("question is required")
	ErrEmptyAnswer   = errors.New("answer is required")
)

const maxTags = 8

var whitespace = regexp.MustCompile(`\s+`)

type KnowledgeWriter interface {
	CreateKnowledgeEntry(ctx context.Context, e *models.KnowledgeEntry) error
}

type Processor struct {
	store KnowledgeWriter
	now   func() time.Time
}

func NewProcessor(store KnowledgeWriter, now func() time.Time) *Processor {
	if now == nil {
		now = time.Now
	}
	return &Processor{store: store, now: now}
}

type EntryInput struct {
	TenantID int64
	Question string
	Answer   string
	Category string
	Tags     []string
	// Format is how Answer is authored: text, html or markdown. Markdown is
	// stored as HTML.
	Format string
}

// PrepareEntry validates in and builds an active entry from it. The answer is
// kept as authored; tags default to the question's keywords.
func (p *Processor) PrepareEntry(in EntryInput) (*models.KnowledgeEntry, error) {
	if in.TenantID <= 0 {
		return nil, models.ErrInvalidTenant
	}
	question := collapse(PlainText(in.Question))
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	answer := strings.TrimSpace(in.Answer)
	if strings.EqualFold(in.Format, FormatMarkdown) {
		rendered, err := RenderMarkdown(answer)
		if err != nil {
			return nil, err
		}
		answer = rendered
	}
	if PlainText(answer) == "" {
		return nil, ErrEmptyAnswer
	}

	tags := normalizeTags(in.Tags)
	if len(tags) == 0 {
		tags = keywords.Extract(question)
	}
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}

	now := p.now()
	return &models.KnowledgeEntry{
		TenantID:  in.TenantID,
		Question:  question,
		Answer:    answer,
		Category:  strings.TrimSpace(in.Category),
		Tags:      tags,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (p *Processor) CreateEntry(ctx context.Context, in EntryInput) (*models.KnowledgeEntry, error) {
	entry, err := p.PrepareEntry(in)
	if err != nil {
		return nil, err
	}
	if err := p.store.CreateKnowledgeEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to store knowledge entry: %w", err)
	}

	logger.Info("Knowledge entry created",
		zap.Int64("tenant_id", entry.TenantID),
		zap.Int64("entry_id", entry.ID),
		zap.Strings("tags", entry.Tags),
	)
	return entry, nil
}

// PlainText flattens HTML to whitespace-normalized text. Input without markup
// comes back trimmed and collapsed.
func PlainText(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return collapse(html)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return collapse(html)
	}

	doc.Find("script, style").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})
	doc.Find("br, p, li, div, h1, h2, h3, h4, tr").Each(func(i int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	return collapse(doc.Text())
}

// Excerpt cuts text to at most maxChars bytes on a word boundary.
func Excerpt(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}

	var b strings.Builder
	for _, word := range strings.Fields(text) {
		if b.Len()+len(word)+1 > maxChars-3 {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
	}
	if b.Len() == 0 {
		return text[:maxChars]
	}
	return b.String() + "..."
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
