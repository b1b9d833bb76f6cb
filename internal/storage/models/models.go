package models

import "time"

type KnowledgeEntry struct {
	ID              int64     `json:"id"`
	TenantID        int64     `json:"tenantId"`
	Question        string    `json:"question"`
	Answer          string    `json:"answer"`
	Category        string    `json:"category"`
	Tags            []string  `json:"tags"`
	Active          bool      `json:"active"`
	Views           int       `json:"views"`
	HelpfulCount    int       `json:"helpfulCount"`
	NotHelpfulCount int       `json:"notHelpfulCount"`
	SortOrder       int       `json:"sortOrder"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// KnowledgeQuery selects active entries of one tenant whose question, answer
// or category contains the terms. With MatchAny a single term suffices,
// otherwise every term must appear in at least one of those fields.
type KnowledgeQuery struct {
	TenantID int64
	Terms    []string
	MatchAny bool
	Limit    int
}

type UnansweredStatus string

const (
	UnansweredPending  UnansweredStatus = "pending"
	UnansweredAnswered UnansweredStatus = "answered"
	UnansweredIgnored  UnansweredStatus = "ignored"
)

func (s UnansweredStatus) Valid() bool {
	switch s {
	case UnansweredPending, UnansweredAnswered, UnansweredIgnored:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

type UnansweredQuery struct {
	ID               int64            `json:"id"`
	TenantID         int64            `json:"tenantId"`
	Query            string           `json:"query"`
	Frequency        int              `json:"frequency"`
	Status           UnansweredStatus `json:"status"`
	Priority         Priority         `json:"priority"`
	IPAddress        string           `json:"ipAddress,omitempty"`
	UserAgent        string           `json:"userAgent,omitempty"`
	SessionID        string           `json:"sessionId,omitempty"`
	KnowledgeEntryID *int64           `json:"knowledgeEntryId,omitempty"`
	FirstAskedAt     time.Time        `json:"firstAskedAt"`
	LastAskedAt      time.Time        `json:"lastAskedAt"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

type UnansweredSort string

const (
	SortLastAsked UnansweredSort = "lastAsked"
	SortFrequency UnansweredSort = "frequency"
	SortPriority  UnansweredSort = "priority"
)

type UnansweredFilter struct {
	TenantID int64
	Status   UnansweredStatus
	Priority Priority
	Sort     UnansweredSort
	Offset   int
	Limit    int
}

type UnansweredStats struct {
	Total        int `json:"total"`
	Pending      int `json:"pending"`
	Answered     int `json:"answered"`
	Ignored      int `json:"ignored"`
	HighPriority int `json:"highPriority"`
}

type VisitorSession struct {
	ID           int64     `json:"id"`
	TenantID     int64     `json:"tenantId"`
	Token        string    `json:"sessionToken"`
	IPAddress    string    `json:"ipAddress"`
	VisitorName  string    `json:"visitorName,omitempty"`
	VisitorEmail string    `json:"visitorEmail,omitempty"`
	VisitorPhone string    `json:"visitorPhone,omitempty"`
	Topic        string    `json:"topic,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Active       bool      `json:"active"`
	MessageCount int       `json:"messageCount"`
	LeadCreated  bool      `json:"leadCreated"`
	LeadID       *int64    `json:"leadId,omitempty"`
}

func (s *VisitorSession) Live(now time.Time) bool {
	return s.Active && s.ExpiresAt.After(now)
}

func (s *VisitorSession) Registered() bool {
	return s.VisitorName != "" || s.VisitorEmail != "" || s.VisitorPhone != ""
}

type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
	LeadQualified LeadStatus = "qualified"
	LeadConverted LeadStatus = "converted"
	LeadLost      LeadStatus = "lost"
)

const (
	SourceChatWidget  = "Chat Widget"
	SourceWebsiteForm = "Website Form"
	SourceManual      = "Manual Entry"
)

type Lead struct {
	ID              int64          `json:"id"`
	TenantID        int64          `json:"tenantId"`
	VisitorID       string         `json:"visitorId"`
	Name            string         `json:"name,omitempty"`
	Email           string         `json:"email,omitempty"`
	Phone           string         `json:"phone,omitempty"`
	Status          LeadStatus     `json:"status"`
	Priority        Priority       `json:"priority"`
	Source          string         `json:"source"`
	ChatCount       int            `json:"chatCount"`
	FormSubmissions int            `json:"formSubmissions"`
	VisitCount      int            `json:"visitCount"`
	Notes           string         `json:"notes,omitempty"`
	CustomFields    map[string]any `json:"customFields,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	FirstVisit      time.Time      `json:"firstVisit"`
	LastVisit       time.Time      `json:"lastVisit"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

type Direction string

const (
	DirectionUser Direction = "user"
	DirectionBot  Direction = "bot"
)

type Reaction string

const (
	ReactionNone       Reaction = ""
	ReactionHelpful    Reaction = "helpful"
	ReactionNotHelpful Reaction = "not_helpful"
)

type MessageMetadata struct {
	RequestID  string  `json:"requestId,omitempty"`
	Source     string  `json:"source,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	EntryIDs   []int64 `json:"entryIds,omitempty"`
	LowQuality bool    `json:"lowQuality,omitempty"`
	Intent     string  `json:"intent,omitempty"`
}

type ChatMessage struct {
	ID           int64           `json:"id"`
	TenantID     int64           `json:"tenantId"`
	SessionToken string          `json:"sessionToken"`
	Direction    Direction       `json:"direction"`
	Content      string          `json:"content"`
	Metadata     MessageMetadata `json:"metadata"`
	Reaction     Reaction        `json:"reaction,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}
