// Package storage selects the repository backend.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/amitsahu0611/chatbot-sub001/internal/ingestion"
	"github.com/amitsahu0611/chatbot-sub001/internal/leads"
	"github.com/amitsahu0611/chatbot-sub001/internal/matcher"
	"github.com/amitsahu0611/chatbot-sub001/internal/query"
	"github.com/amitsahu0611/chatbot-sub001/internal/session"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/memory"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/sqlite"
	"github.com/amitsahu0611/chatbot-sub001/internal/unanswered"
	"github.com/amitsahu0611/chatbot-sub001/pkg/config"
	"github.com/amitsahu0611/chatbot-sub001/pkg/logger"
)

const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Store is every repository the service needs, served by one backend.
type Store interface {
	matcher.KnowledgeSearcher
	unanswered.Store
	session.Store
	leads.Store
	query.Store
	ingestion.KnowledgeWriter
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*sqlite.Client)(nil)
	_ Store = (*memory.Store)(nil)
)

// Open returns the backend named by cfg.Storage.Driver.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Storage.Driver {
	case DriverMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		return memory.New(), nil
	case DriverSQLite, "":
		client, err := sqlite.NewClient(cfg.SQLite.Path, cfg.StorageTimeout())
		if err != nil {
			return nil, err
		}
		if err := client.InitSchema(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		logger.Info("SQLite storage ready", zap.String("path", cfg.SQLite.Path))
		return client, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
