// Package query runs the visitor-facing answer pipeline: match, synthesize,
// classify, and record what could not be answered.
package query

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amitsahu0611/chatbot-sub001/internal/answer"
	"github.com/amitsahu0611/chatbot-sub001/internal/evaluation"
	"github.com/amitsahu0611/chatbot-sub001/internal/matcher"
	"github.com/amitsahu0611/chatbot-sub001/internal/metrics"
	"github.com/amitsahu0611/chatbot-sub001/internal/session"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
	"github.com/amitsahu0611/chatbot-sub001/internal/unanswered"
	"github.com/amitsahu0611/chatbot-sub001/pkg/logger"
	"github.com/amitsahu0611/chatbot-sub001/pkg/utils"
)

var (
	ErrInvalidRequest       = errors.New("invalid query request")
	ErrKnowledgeUnavailable = errors.New("knowledge base unavailable")
)

// UnavailableConfidence is reported with the static reply served when the
// knowledge base cannot be read.
const UnavailableConfidence = 0.1

type Store interface {
	IncrementKnowledgeViews(ctx context.Context, tenantID, id int64) error
	RecordKnowledgeFeedback(ctx context.Context, tenantID, id int64, helpful bool) error
	AppendMessage(ctx context.Context, m *models.ChatMessage) error
	ListSessionMessages(ctx context.Context, tenantID int64, token string, offset, limit int) ([]models.ChatMessage, int, error)
	GetMessage(ctx context.Context, tenantID, id int64) (*models.ChatMessage, error)
	SetMessageReaction(ctx context.Context, tenantID, id int64, r models.Reaction) error
}

type Synthesizer interface {
	Synthesize(ctx context.Context, query string, entries []models.KnowledgeEntry) answer.Answer
}

type Recorder interface {
	RecordIfLowQuality(ctx context.Context, occ unanswered.Occurrence, lowQuality bool) (*models.UnansweredQuery, error)
}

type Sessions interface {
	Live(ctx context.Context, token string) (*models.VisitorSession, error)
	Active(ctx context.Context, tenantID int64, ip string) (*models.VisitorSession, error)
	Touch(ctx context.Context, token string) (*models.VisitorSession, error)
	RecordMessages(ctx context.Context, token string, n int) error
}

// MatchCache stores matcher results per tenant.
type MatchCache interface {
	GetMatch(ctx context.Context, tenantID int64, queryHash string, dst any) (bool, error)
	SetMatch(ctx context.Context, tenantID int64, queryHash string, value any) error
}

type Limits struct {
	DefaultLimit    int
	MaxLimit        int
	MaxQueryLength  int
	SuggestionLimit int
	// SideEffectTimeout bounds each best-effort write.
	SideEffectTimeout time.Duration
}

type Engine struct {
	store       Store
	matcher     matcher.KnowledgeMatcher
	synthesizer Synthesizer
	recorder    Recorder
	sessions    Sessions
	cache       MatchCache
	limits      Limits
	now         func() time.Time
}

type Option func(*Engine)

// WithCache enables the match cache.
func WithCache(c MatchCache) Option {
	return func(e *Engine) { e.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store Store, m matcher.KnowledgeMatcher, synth Synthesizer, recorder Recorder, sessions Sessions, limits Limits, opts ...Option) *Engine {
	if limits.DefaultLimit <= 0 {
		limits.DefaultLimit = 5
	}
	if limits.MaxLimit < limits.DefaultLimit {
		limits.MaxLimit = limits.DefaultLimit
	}
	if limits.MaxQueryLength <= 0 {
		limits.MaxQueryLength = 1000
	}
	if limits.SuggestionLimit <= 0 {
		limits.SuggestionLimit = 5
	}
	if limits.SideEffectTimeout <= 0 {
		limits.SideEffectTimeout = 3 * time.Second
	}

	e := &Engine{
		store:       store,
		matcher:     m,
		synthesizer: synth,
		recorder:    recorder,
		sessions:    sessions,
		limits:      limits,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type Request struct {
	TenantID     int64
	Query        string
	Limit        int
	SessionToken string
	IPAddress    string
	UserAgent    string
	RequestID    string
}

type Response struct {
	ID             string                  `json:"id"`
	Query          string                  `json:"query"`
	Answer         string                  `json:"answer"`
	Source         string                  `json:"source"`
	Confidence     float64                 `json:"confidence"`
	Tier           string                  `json:"tier"`
	LowQuality     bool                    `json:"lowQuality"`
	Intent         string                  `json:"intent,omitempty"`
	RelatedEntries []models.KnowledgeEntry `json:"relatedEntries"`
	MessageID      *int64                  `json:"messageId,omitempty"`
	LatencyMS      int                     `json:"latencyMs"`
}

// Search answers req. On ErrKnowledgeUnavailable the returned Response still
// carries a user-safe answer.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	start := e.now()

	q, err := e.validate(req.TenantID, req.Query)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	limit := e.clampLimit(req.Limit, e.limits.DefaultLimit)

	id := req.RequestID
	if id == "" {
		id = uuid.New().String()
	}

	logger.Info("Processing query",
		zap.String("request_id", id),
		zap.Int64("tenant_id", req.TenantID),
		zap.Int("query_length", len(q)),
	)

	result, err := e.match(ctx, req.TenantID, q, limit)
	if err != nil {
		logger.Error("Knowledge lookup failed",
			zap.String("request_id", id),
			zap.Int64("tenant_id", req.TenantID),
			zap.Error(err),
		)
		metrics.QueryTotal.WithLabelValues("unavailable").Inc()
		return &Response{
			ID:             id,
			Query:          q,
			Answer:         answer.GenericFallback,
			Source:         answer.SourceFallback,
			Confidence:     UnavailableConfidence,
			Tier:           matcher.TierNone.String(),
			LowQuality:     true,
			RelatedEntries: []models.KnowledgeEntry{},
		}, fmt.Errorf("%w: %v", ErrKnowledgeUnavailable, err)
	}
	metrics.MatchTier.WithLabelValues(result.Tier.String()).Inc()

	ans := e.synthesizer.Synthesize(ctx, q, result.Entries)
	verdict := evaluation.Classify(ans.Text, result.Entries)

	resp := &Response{
		ID:             id,
		Query:          q,
		Answer:         ans.Text,
		Source:         ans.Source,
		Confidence:     ans.Confidence,
		Tier:           result.Tier.String(),
		LowQuality:     verdict.LowQuality,
		Intent:         ans.Intent,
		RelatedEntries: result.Entries,
	}

	if verdict.LowQuality {
		metrics.LowQualityAnswers.WithLabelValues(string(verdict.Reason)).Inc()
		e.recordUnanswered(ctx, req, q)
	}

	if len(result.Entries) > 0 {
		e.bestEffort(ctx, "knowledge_view", func(ctx context.Context) error {
			return e.store.IncrementKnowledgeViews(ctx, req.TenantID, result.Entries[0].ID)
		})
	}

	if req.SessionToken != "" {
		resp.MessageID = e.logExchange(ctx, req, resp)
	}

	status := "answered"
	if verdict.LowQuality {
		status = "low_quality"
	}
	elapsed := e.now().Sub(start)
	resp.LatencyMS = int(elapsed.Milliseconds())
	metrics.QueryTotal.WithLabelValues(status).Inc()
	metrics.QueryDuration.WithLabelValues(sourceKind(ans.Source)).Observe(elapsed.Seconds())
	metrics.ConfidenceScore.Observe(resp.Confidence)

	logger.Info("Query processed",
		zap.String("request_id", id),
		zap.Int64("tenant_id", req.TenantID),
		zap.String("tier", resp.Tier),
		zap.Int("entries", len(result.Entries)),
		zap.Bool("low_quality", verdict.LowQuality),
		zap.Float64("confidence", resp.Confidence),
	)
	return resp, nil
}

func (e *Engine) validate(tenantID int64, query string) (string, error) {
	if tenantID <= 0 {
		return "", fmt.Errorf("%w: tenantId is required", ErrInvalidRequest)
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return "", fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	if utf8.RuneCountInString(q) > e.limits.MaxQueryLength {
		return "", fmt.Errorf("%w: query exceeds %d characters", ErrInvalidRequest, e.limits.MaxQueryLength)
	}
	return q, nil
}

func (e *Engine) clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > e.limits.MaxLimit {
		return e.limits.MaxLimit
	}
	return limit
}

func (e *Engine) match(ctx context.Context, tenantID int64, q string, limit int) (matcher.Result, error) {
	if e.cache == nil {
		return e.matcher.Match(ctx, tenantID, q, limit)
	}

	key := utils.HashString(strings.ToLower(q), strconv.Itoa(limit))
	var cached matcher.Result
	hit, err := e.cache.GetMatch(ctx, tenantID, key, &cached)
	if err != nil {
		logger.Warn("Match cache read failed", zap.Int64("tenant_id", tenantID), zap.Error(err))
	}
	if hit {
		metrics.CacheHits.WithLabelValues("match").Inc()
		if cached.Entries == nil {
			cached.Entries = []models.KnowledgeEntry{}
		}
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues("match").Inc()

	result, err := e.matcher.Match(ctx, tenantID, q, limit)
	if err != nil {
		return result, err
	}
	e.bestEffort(ctx, "match_cache", func(ctx context.Context) error {
		return e.cache.SetMatch(ctx, tenantID, key, result)
	})
	return result, nil
}

func (e *Engine) recordUnanswered(ctx context.Context, req Request, q string) {
	if e.recorder == nil {
		return
	}
	var rec *models.UnansweredQuery
	ok := e.bestEffort(ctx, "unanswered_record", func(ctx context.Context) error {
		var err error
		rec, err = e.recorder.RecordIfLowQuality(ctx, unanswered.Occurrence{
			TenantID:  req.TenantID,
			Query:     q,
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
			SessionID: req.SessionToken,
		}, true)
		return err
	})
	if !ok || rec == nil {
		return
	}
	outcome := "merged"
	if rec.Frequency == 1 {
		outcome = "new"
	}
	metrics.UnansweredRecorded.WithLabelValues(outcome).Inc()
}

// logExchange stores the user and bot messages on a live session and returns
// the bot message id. Nothing is stored for an unknown or expired token.
func (e *Engine) logExchange(ctx context.Context, req Request, resp *Response) *int64 {
	if e.sessions == nil {
		return nil
	}
	sctx, cancel := e.detached(ctx)
	defer cancel()

	s, err := e.sessions.Touch(sctx, req.SessionToken)
	if err != nil {
		if !errors.Is(err, session.ErrSessionNotFound) {
			metrics.BestEffortFailures.WithLabelValues("session_touch").Inc()
			logger.Warn("Session touch failed", logger.Token(req.SessionToken), zap.Error(err))
		}
		return nil
	}
	if s.TenantID != req.TenantID {
		return nil
	}

	now := e.now()
	userMsg := &models.ChatMessage{
		TenantID:     req.TenantID,
		SessionToken: s.Token,
		Direction:    models.DirectionUser,
		Content:      resp.Query,
		Metadata:     models.MessageMetadata{RequestID: resp.ID},
		CreatedAt:    now,
	}
	botMsg := &models.ChatMessage{
		TenantID:     req.TenantID,
		SessionToken: s.Token,
		Direction:    models.DirectionBot,
		Content:      resp.Answer,
		Metadata: models.MessageMetadata{
			RequestID:  resp.ID,
			Source:     resp.Source,
			Confidence: resp.Confidence,
			EntryIDs:   entryIDs(resp.RelatedEntries),
			LowQuality: resp.LowQuality,
			Intent:     resp.Intent,
		},
		CreatedAt: now,
	}

	stored := 0
	for _, m := range []*models.ChatMessage{userMsg, botMsg} {
		if err := e.store.AppendMessage(sctx, m); err != nil {
			metrics.BestEffortFailures.WithLabelValues("chat_message").Inc()
			logger.Warn("Chat message not stored", logger.Token(s.Token), zap.Error(err))
			continue
		}
		stored++
	}
	if stored > 0 {
		if err := e.sessions.RecordMessages(sctx, s.Token, stored); err != nil {
			metrics.BestEffortFailures.WithLabelValues("session_messages").Inc()
			logger.Warn("Session message count not updated", logger.Token(s.Token), zap.Error(err))
		}
	}
	if botMsg.ID == 0 {
		return nil
	}
	id := botMsg.ID
	return &id
}

// bestEffort runs fn under its own timeout, detached from the caller's
// cancellation. Failures are logged and counted, never returned.
func (e *Engine) bestEffort(ctx context.Context, op string, fn func(context.Context) error) bool {
	sctx, cancel := e.detached(ctx)
	defer cancel()
	if err := fn(sctx); err != nil {
		metrics.BestEffortFailures.WithLabelValues(op).Inc()
		logger.Warn("Best-effort write failed", zap.String("operation", op), zap.Error(err))
		return false
	}
	return true
}

func (e *Engine) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.limits.SideEffectTimeout)
}

func entryIDs(entries []models.KnowledgeEntry) []int64 {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]int64, len(entries))
	for i, en := range entries {
		ids[i] = en.ID
	}
	return ids
}

func sourceKind(source string) string {
	if strings.HasPrefix(source, "faq:") {
		return "faq"
	}
	return source
}
