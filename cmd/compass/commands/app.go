// ABOUTME: Shared setup for commands that touch the contact store
// ABOUTME: Loads .env and config, opens SQLite and builds the classifier
package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/harper/contact-compass/internal/config"
	"github.com/harper/contact-compass/internal/core"
	"github.com/harper/contact-compass/internal/storage/sqlite"
)

type app struct {
	cfg        *config.Config
	db         *sqlite.DB
	store      *sqlite.ContactStore
	classifier *core.Classifier
}

func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	classifier, err := cfg.Classifier()
	if err != nil {
		return nil, fmt.Errorf("loading classifier: %w", err)
	}

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening contact store: %w", err)
	}
	logger.Debug("opened contact store", zap.String("path", cfg.DBPath))

	return &app{
		cfg:        cfg,
		db:         db,
		store:      sqlite.NewContactStore(db),
		classifier: classifier,
	}, nil
}

func (a *app) ingester() *core.Ingester {
	return core.NewIngester(a.store, core.WithClassifier(a.classifier), core.WithLogger(logger))
}

func (a *app) categorizer() *core.Categorizer {
	return core.NewCategorizer(a.store, a.classifier, logger)
}

func (a *app) Close() {
	_ = a.db.Close()
}
