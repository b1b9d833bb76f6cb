package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
	"github.com/amitsahu0611/chatbot-sub001/pkg/logger"
)

const (
	defaultTimeout = 3 * time.Second

	// driverName is go-sqlite3 with fold(text) registered on every
	// connection. The built-in LOWER only folds ASCII.
	driverName = "sqlite3_chatbot"
)

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", strings.ToLower, true)
		},
	})
}

type Client struct {
	db      *sql.DB
	timeout time.Duration
}

// NewClient opens the database at dbPath. Every call made through the client
// is bounded by timeout.
func NewClient(dbPath string, timeout time.Duration) (*Client, error) {
	db, err := sql.Open(driverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// each connection to :memory: gets its own database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath), zap.Duration("timeout", timeout))

	return &Client{db: db, timeout: timeout}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.db.PingContext(ctx)
}

func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS knowledge_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id INTEGER NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		active INTEGER NOT NULL DEFAULT 1,
		views INTEGER NOT NULL DEFAULT 0,
		helpful_count INTEGER NOT NULL DEFAULT 0,
		not_helpful_count INTEGER NOT NULL DEFAULT 0,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_knowledge_tenant_active ON knowledge_entries(tenant_id, active);

	CREATE TABLE IF NOT EXISTS unanswered_queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id INTEGER NOT NULL,
		query TEXT NOT NULL,
		frequency INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'pending',
		priority TEXT NOT NULL DEFAULT 'low',
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		session_id TEXT NOT NULL DEFAULT '',
		knowledge_entry_id INTEGER,
		first_asked_at INTEGER NOT NULL,
		last_asked_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (knowledge_entry_id) REFERENCES knowledge_entries(id) ON DELETE SET NULL
	);
	CREATE INDEX IF NOT EXISTS idx_unanswered_tenant_status ON unanswered_queries(tenant_id, status);
	CREATE INDEX IF NOT EXISTS idx_unanswered_last_asked ON unanswered_queries(tenant_id, last_asked_at);

	CREATE TABLE IF NOT EXISTS visitor_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id INTEGER NOT NULL,
		session_token TEXT NOT NULL,
		ip_address TEXT NOT NULL,
		visitor_name TEXT NOT NULL DEFAULT '',
		visitor_email TEXT NOT NULL DEFAULT '',
		visitor_phone TEXT NOT NULL DEFAULT '',
		topic TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		last_activity INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		message_count INTEGER NOT NULL DEFAULT 0,
		lead_created INTEGER NOT NULL DEFAULT 0,
		lead_id INTEGER
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_token ON visitor_sessions(session_token);
	CREATE INDEX IF NOT EXISTS idx_sessions_lookup ON visitor_sessions(ip_address, tenant_id, expires_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_tenant_active ON visitor_sessions(tenant_id, active);

	CREATE TABLE IF NOT EXISTS leads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id INTEGER NOT NULL,
		visitor_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'new',
		priority TEXT NOT NULL DEFAULT 'medium',
		source TEXT NOT NULL DEFAULT '',
		chat_count INTEGER NOT NULL DEFAULT 0,
		form_submissions INTEGER NOT NULL DEFAULT 0,
		visit_count INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		custom_fields TEXT NOT NULL DEFAULT '{}',
		metadata TEXT NOT NULL DEFAULT '{}',
		first_visit INTEGER NOT NULL,
		last_visit INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_tenant_email ON leads(tenant_id, LOWER(email)) WHERE email <> '';
	CREATE INDEX IF NOT EXISTS idx_leads_tenant_status ON leads(tenant_id, status);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id INTEGER NOT NULL,
		session_token TEXT NOT NULL,
		direction TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		reaction TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(tenant_id, session_token, created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func requireOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unix(t time.Time) int64 {
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0)
}

type rowScanner interface {
	Scan(dest ...any) error
}
