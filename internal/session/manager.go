// Package session binds anonymous visitors to expiring, token-identified
// sessions and upgrades them to leads on registration.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amitsahu0611/chatbot-sub001/internal/leads"
	"github.com/amitsahu0611/chatbot-sub001/internal/metrics"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
	"github.com/amitsahu0611/chatbot-sub001/pkg/logger"
)

var (
	ErrSessionNotFound = errors.New("session not found or expired")
	ErrInvalidRequest  = errors.New("invalid session request")
)

const tokenBytes = 32

type Store interface {
	CreateSession(ctx context.Context, s *models.VisitorSession) error
	FindActiveSession(ctx context.Context, tenantID int64, ip string, now time.Time) (*models.VisitorSession, error)
	GetSessionByToken(ctx context.Context, token string) (*models.VisitorSession, error)
	ExpireSessionsFor(ctx context.Context, tenantID int64, ip string, now time.Time) (int64, error)
	SweepExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	UpdateSessionVisitor(ctx context.Context, s *models.VisitorSession) error
	TouchSession(ctx context.Context, token string, lastActivity, expiresAt time.Time) error
	IncrementSessionMessages(ctx context.Context, token string, n int) error
	MarkSessionLeadCreated(ctx context.Context, token string, leadID int64) error
}

type LeadUpserter interface {
	Upsert(ctx context.Context, in leads.Input) (*leads.Result, error)
}

type Config struct {
	// Duration is the default session window.
	Duration time.Duration
	// MaxDuration caps both requested windows and sliding extensions,
	// measured from creation.
	MaxDuration time.Duration
	// SlidingExpiry extends the window on activity. Off by default: the
	// window is absolute from creation.
	SlidingExpiry bool
}

type Manager struct {
	store Store
	leads LeadUpserter
	cfg   Config
	now   func() time.Time

	newToken func() (string, error)
}

func NewManager(store Store, leadUpserter LeadUpserter, cfg Config, now func() time.Time) *Manager {
	if cfg.Duration <= 0 {
		cfg.Duration = 120 * time.Minute
	}
	if cfg.MaxDuration < cfg.Duration {
		cfg.MaxDuration = cfg.Duration
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{
		store:    store,
		leads:    leadUpserter,
		cfg:      cfg,
		now:      now,
		newToken: NewToken,
	}
}

// NewToken returns 32 random bytes, hex encoded.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

type CheckRequest struct {
	TenantID  int64
	IPAddress string
	// DurationMinutes overrides the configured window for a new session.
	DurationMinutes int
}

type CheckResult struct {
	// HasActiveSession is false when Session was minted by this call.
	HasActiveSession bool
	Session          *models.VisitorSession
}

// Check returns the visitor's live session, creating one when there is none.
func (m *Manager) Check(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	if req.TenantID <= 0 {
		return nil, models.ErrInvalidTenant
	}
	ip := strings.TrimSpace(req.IPAddress)
	if ip == "" {
		return nil, fmt.Errorf("%w: missing ip address", ErrInvalidRequest)
	}

	now := m.now()

	if n, err := m.store.ExpireSessionsFor(ctx, req.TenantID, ip, now); err != nil {
		logger.Warn("Lazy session sweep failed", zap.Int64("tenant_id", req.TenantID), zap.Error(err))
	} else if n > 0 {
		logger.Debug("Expired sessions swept", zap.Int64("tenant_id", req.TenantID), zap.Int64("count", n))
	}

	existing, err := m.store.FindActiveSession(ctx, req.TenantID, ip, now)
	switch {
	case err == nil:
		m.refresh(ctx, existing, now)
		return &CheckResult{HasActiveSession: true, Session: existing}, nil
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	s, err := m.create(ctx, req.TenantID, ip, m.window(req.DurationMinutes), now)
	if err != nil {
		return nil, err
	}
	return &CheckResult{HasActiveSession: false, Session: s}, nil
}

func (m *Manager) window(minutes int) time.Duration {
	if minutes <= 0 {
		return m.cfg.Duration
	}
	d := time.Duration(minutes) * time.Minute
	if d > m.cfg.MaxDuration {
		d = m.cfg.MaxDuration
	}
	return d
}

func (m *Manager) create(ctx context.Context, tenantID int64, ip string, window time.Duration, now time.Time) (*models.VisitorSession, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		token, err := m.newToken()
		if err != nil {
			return nil, err
		}

		s := &models.VisitorSession{
			TenantID:     tenantID,
			Token:        token,
			IPAddress:    ip,
			CreatedAt:    now,
			LastActivity: now,
			ExpiresAt:    now.Add(window),
			Active:       true,
		}
		err = m.store.CreateSession(ctx, s)
		if err == nil {
			metrics.SessionsCreated.Inc()
			logger.Info("Session created",
				zap.Int64("tenant_id", tenantID),
				logger.Token(token),
				zap.Time("expires_at", s.ExpiresAt),
			)
			return s, nil
		}
		if !errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to mint unique session token: %w", lastErr)
}

// refresh records activity on s. Failure is logged and ignored.
func (m *Manager) refresh(ctx context.Context, s *models.VisitorSession, now time.Time) {
	s.LastActivity = now
	s.ExpiresAt = m.extend(s, now)
	if err := m.store.TouchSession(ctx, s.Token, s.LastActivity, s.ExpiresAt); err != nil {
		logger.Warn("Session activity update failed", logger.Token(s.Token), zap.Error(err))
	}
}

func (m *Manager) extend(s *models.VisitorSession, now time.Time) time.Time {
	if !m.cfg.SlidingExpiry {
		return s.ExpiresAt
	}
	next := now.Add(m.cfg.Duration)
	if limit := s.CreatedAt.Add(m.cfg.MaxDuration); next.After(limit) {
		next = limit
	}
	if next.Before(s.ExpiresAt) {
		return s.ExpiresAt
	}
	return next
}

// Live returns the session for token if it exists and has not expired.
func (m *Manager) Live(ctx context.Context, token string) (*models.VisitorSession, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: missing session token", ErrInvalidRequest)
	}

	s, err := m.store.GetSessionByToken(ctx, token)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !s.Live(m.now()) {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Active returns the visitor's live session without creating or touching one.
func (m *Manager) Active(ctx context.Context, tenantID int64, ip string) (*models.VisitorSession, error) {
	if tenantID <= 0 {
		return nil, models.ErrInvalidTenant
	}
	s, err := m.store.FindActiveSession(ctx, tenantID, strings.TrimSpace(ip), m.now())
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	return s, nil
}

// Touch records activity on a live session.
func (m *Manager) Touch(ctx context.Context, token string) (*models.VisitorSession, error) {
	s, err := m.Live(ctx, token)
	if err != nil {
		return nil, err
	}

	now := m.now()
	s.LastActivity = now
	s.ExpiresAt = m.extend(s, now)
	if err := m.store.TouchSession(ctx, s.Token, s.LastActivity, s.ExpiresAt); err != nil {
		return nil, fmt.Errorf("failed to touch session: %w", err)
	}
	return s, nil
}

// RecordMessages adds n to the session's message counter.
func (m *Manager) RecordMessages(ctx context.Context, token string, n int) error {
	return m.store.IncrementSessionMessages(ctx, token, n)
}

type RegisterRequest struct {
	TenantID  int64
	Token     string
	Name      string
	Email     string
	Phone     string
	Topic     string
	IPAddress string
}

// Register sets visitor details on the session in place. The first
// registration carrying an email creates or enriches the tenant's lead; later
// registrations on the same session do not.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) (*models.VisitorSession, error) {
	if req.TenantID <= 0 {
		return nil, models.ErrInvalidTenant
	}

	s, err := m.Live(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	if s.TenantID != req.TenantID {
		return nil, ErrSessionNotFound
	}

	now := m.now()
	setIfPresent(&s.VisitorName, req.Name)
	setIfPresent(&s.VisitorEmail, leads.NormalizeEmail(req.Email))
	setIfPresent(&s.VisitorPhone, req.Phone)
	setIfPresent(&s.Topic, req.Topic)
	s.LastActivity = now
	s.ExpiresAt = m.extend(s, now)

	if err := m.store.UpdateSessionVisitor(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to register visitor: %w", err)
	}

	logger.Info("Visitor registered",
		zap.Int64("tenant_id", s.TenantID),
		logger.Token(s.Token),
		zap.Bool("has_email", s.VisitorEmail != ""),
	)

	if s.VisitorEmail != "" && !s.LeadCreated && m.leads != nil {
		m.createLead(ctx, s, req.IPAddress)
	}
	return s, nil
}

func (m *Manager) createLead(ctx context.Context, s *models.VisitorSession, ip string) {
	res, err := m.leads.Upsert(ctx, leads.Input{
		TenantID:  s.TenantID,
		Email:     s.VisitorEmail,
		Name:      s.VisitorName,
		Phone:     s.VisitorPhone,
		Source:    models.SourceChatWidget,
		VisitorID: s.Token,
		Topic:     s.Topic,
		IPAddress: ip,
	})
	if err != nil {
		logger.Warn("Lead upsert on registration failed", logger.Token(s.Token), zap.Error(err))
		metrics.BestEffortFailures.WithLabelValues("lead_upsert").Inc()
		return
	}
	if res.Created {
		metrics.LeadsUpserted.WithLabelValues("created").Inc()
	} else {
		metrics.LeadsUpserted.WithLabelValues("updated").Inc()
	}

	if err := m.store.MarkSessionLeadCreated(ctx, s.Token, res.Lead.ID); err != nil {
		logger.Warn("Failed to flag session lead", logger.Token(s.Token), zap.Error(err))
		return
	}
	id := res.Lead.ID
	s.LeadCreated = true
	s.LeadID = &id
}

func setIfPresent(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// Sweep deactivates every expired session.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	return m.store.SweepExpiredSessions(ctx, m.now())
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			if err != nil {
				logger.Warn("Session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("Expired sessions deactivated", zap.Int64("count", n))
			}
		}
	}
}
