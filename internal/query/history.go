package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/amitsahu0611/chatbot-sub001/internal/session"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
	"github.com/amitsahu0611/chatbot-sub001/pkg/logger"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type Suggestion struct {
	ID           int64  `json:"id"`
	Question     string `json:"question"`
	Category     string `json:"category"`
	Views        int    `json:"views"`
	HelpfulCount int    `json:"helpfulCount"`
}

// Suggestions lists knowledge entries whose text overlaps the partial query.
func (e *Engine) Suggestions(ctx context.Context, tenantID int64, query string, limit int) ([]Suggestion, error) {
	q, err := e.validate(tenantID, query)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = e.limits.SuggestionLimit
	}
	limit = e.clampLimit(limit, e.limits.SuggestionLimit)

	result, err := e.matcher.Match(ctx, tenantID, q, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKnowledgeUnavailable, err)
	}

	out := make([]Suggestion, 0, len(result.Entries))
	for _, en := range result.Entries {
		out = append(out, Suggestion{
			ID:           en.ID,
			Question:     en.Question,
			Category:     en.Category,
			Views:        en.Views,
			HelpfulCount: en.HelpfulCount,
		})
	}
	return out, nil
}

type HistoryRequest struct {
	TenantID     int64
	SessionToken string
	IPAddress    string
	Page         int
	Limit        int
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type History struct {
	Messages         []models.ChatMessage `json:"messages"`
	Pagination       Pagination           `json:"pagination"`
	CurrentSessionID string               `json:"currentSessionId"`
}

// History pages through the messages of the visitor's current session,
// newest first. The session comes from the token when given, otherwise from
// the caller's address. No live session yields an empty page.
func (e *Engine) History(ctx context.Context, req HistoryRequest) (*History, error) {
	if req.TenantID <= 0 {
		return nil, fmt.Errorf("%w: tenantId is required", ErrInvalidRequest)
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	h := &History{
		Messages:   []models.ChatMessage{},
		Pagination: Pagination{Page: page, Limit: limit},
	}

	s, err := e.currentSession(ctx, req)
	if errors.Is(err, session.ErrSessionNotFound) {
		return h, nil
	}
	if err != nil {
		return nil, err
	}

	msgs, total, err := e.store.ListSessionMessages(ctx, req.TenantID, s.Token, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	h.Messages = msgs
	h.CurrentSessionID = s.Token
	h.Pagination.Total = total
	h.Pagination.Pages = (total + limit - 1) / limit
	return h, nil
}

func (e *Engine) currentSession(ctx context.Context, req HistoryRequest) (*models.VisitorSession, error) {
	if e.sessions == nil {
		return nil, session.ErrSessionNotFound
	}
	if token := strings.TrimSpace(req.SessionToken); token != "" {
		s, err := e.sessions.Live(ctx, token)
		if err != nil {
			return nil, err
		}
		if s.TenantID != req.TenantID {
			return nil, session.ErrSessionNotFound
		}
		return s, nil
	}
	if strings.TrimSpace(req.IPAddress) == "" {
		return nil, session.ErrSessionNotFound
	}
	return e.sessions.Active(ctx, req.TenantID, req.IPAddress)
}

// SetReaction flags a bot message as helpful or not. The first reaction on a
// message also counts towards the feedback of the entry it was answered from.
func (e *Engine) SetReaction(ctx context.Context, tenantID, messageID int64, reaction models.Reaction) (*models.ChatMessage, error) {
	if tenantID <= 0 {
		return nil, fmt.Errorf("%w: tenantId is required", ErrInvalidRequest)
	}
	if reaction != models.ReactionHelpful && reaction != models.ReactionNotHelpful {
		return nil, fmt.Errorf("%w: reaction must be %q or %q", ErrInvalidRequest, models.ReactionHelpful, models.ReactionNotHelpful)
	}

	msg, err := e.store.GetMessage(ctx, tenantID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Direction != models.DirectionBot {
		return nil, fmt.Errorf("%w: only bot messages take reactions", ErrInvalidRequest)
	}

	previous := msg.Reaction
	if err := e.store.SetMessageReaction(ctx, tenantID, messageID, reaction); err != nil {
		return nil, fmt.Errorf("failed to set reaction: %w", err)
	}
	msg.Reaction = reaction

	if previous == models.ReactionNone && len(msg.Metadata.EntryIDs) > 0 {
		entryID := msg.Metadata.EntryIDs[0]
		e.bestEffort(ctx, "knowledge_feedback", func(ctx context.Context) error {
			return e.store.RecordKnowledgeFeedback(ctx, tenantID, entryID, reaction == models.ReactionHelpful)
		})
	}

	logger.Info("Message reaction set",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("message_id", messageID),
		zap.String("reaction", string(reaction)),
	)
	return msg, nil
}
