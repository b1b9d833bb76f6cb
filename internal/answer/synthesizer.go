// Package answer turns matched knowledge entries into the text shown to the
// visitor.
package answer

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/amitsahu0611/chatbot-sub001/internal/metrics"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
	"github.com/amitsahu0611/chatbot-sub001/pkg/logger"
)

const (
	SourceFallback = "fallback"

	ConfidenceMatched   = 0.8
	ConfidenceGenerated = 0.3
	ConfidenceGeneric   = 0.3
)

// GenericFallback is the reply when nothing better is available.
const GenericFallback = "I don't have that information right now. Please contact support and our team will be happy to help."

// Generator phrases an answer from entries. It must decline rather than
// invent when entries do not cover the query.
type Generator interface {
	GenerateAnswer(ctx context.Context, query string, entries []models.KnowledgeEntry) (string, error)
}

type Answer struct {
	Text       string
	Confidence float64
	Source     string
	Generated  bool
	// Intent names the canned reply used, empty otherwise.
	Intent     string
}

type template struct {
	intent     string
	triggers   []string
	text       string
	confidence float64
}

// templates are tried in order; the first with a trigger phrase present in
// the query wins.
var templates = []template{
	{
		intent:     "greeting",
		triggers:   []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"},
		text:       "Hello! How can I help you today?",
		confidence: 0.7,
	},
	{
		intent:     "pricing",
		triggers:   []string{"price", "prices", "pricing", "cost", "costs", "how much", "plan", "plans", "subscription"},
		text:       "For pricing details please reach out to our sales team, they will find the right plan for you.",
		confidence: 0.6,
	},
	{
		intent:     "contact",
		triggers:   []string{"contact", "phone", "email", "call", "reach you", "talk to"},
		text:       "You can reach our team through the contact details on our website. Leave your email here and we will get back to you.",
		confidence: 0.6,
	},
	{
		intent:     "support",
		triggers:   []string{"help", "support", "problem", "issue", "not working", "broken"},
		text:       "I'm sorry you're having trouble. Please contact support with a short description of the issue.",
		confidence: 0.6,
	},
}

// Synthesizer never fails: generator errors degrade to the matched answer or
// to a template.
type Synthesizer struct {
	generator Generator
}

// NewSynthesizer accepts a nil generator.
func NewSynthesizer(generator Generator) *Synthesizer {
	return &Synthesizer{generator: generator}
}

func (s *Synthesizer) Synthesize(ctx context.Context, query string, entries []models.KnowledgeEntry) Answer {
	if len(entries) > 0 {
		return s.fromEntries(ctx, query, entries)
	}
	return s.fallback(ctx, query)
}

func (s *Synthesizer) fromEntries(ctx context.Context, query string, entries []models.KnowledgeEntry) Answer {
	top := entries[0]
	ans := Answer{
		Text:       top.Answer,
		Confidence: ConfidenceMatched,
		Source:     EntrySource(top.ID),
	}

	if s.generator == nil {
		return ans
	}

	text, err := s.generator.GenerateAnswer(ctx, query, entries)
	if err != nil || strings.TrimSpace(text) == "" {
		metrics.GeneratorFailures.Inc()
		logger.Warn("Answer generation failed, using matched answer",
			zap.Int64("entry_id", top.ID),
			zap.Error(err),
		)
		return ans
	}

	ans.Text = text
	ans.Generated = true
	return ans
}

func (s *Synthesizer) fallback(ctx context.Context, query string) Answer {
	if s.generator != nil {
		text, err := s.generator.GenerateAnswer(ctx, query, nil)
		if err == nil && strings.TrimSpace(text) != "" {
			return Answer{Text: text, Confidence: ConfidenceGenerated, Source: SourceFallback, Generated: true}
		}
		metrics.GeneratorFailures.Inc()
		logger.Warn("Fallback generation failed, using template", zap.Error(err))
	}
	return Template(query)
}

// Template returns the canned reply for the first intent the query triggers,
// or the generic reply.
func Template(query string) Answer {
	if t := matchTemplate(query); t != nil {
		return Answer{Text: t.text, Confidence: t.confidence, Source: SourceFallback, Intent: t.intent}
	}
	return Answer{Text: GenericFallback, Confidence: ConfidenceGeneric, Source: SourceFallback}
}

// matchTemplate compares on whole words so "they" does not trigger "hey".
func matchTemplate(query string) *template {
	padded := " " + strings.Join(strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ") + " "
	for i := range templates {
		for _, trigger := range templates[i].triggers {
			if strings.Contains(padded, " "+trigger+" ") {
				return &templates[i]
			}
		}
	}
	return nil
}

func EntrySource(id int64) string {
	return fmt.Sprintf("faq:%d", id)
}
