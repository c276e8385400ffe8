package app

import (
	"fmt"

	"go.uber.org/zap"

	"epilogue/internal/config"
	"epilogue/internal/domain"
	"epilogue/internal/googlebooks"
	"epilogue/internal/microblog"
	"epilogue/internal/secret"
	"epilogue/internal/service"
	"epilogue/internal/storage"
)

// core is everything both the window and the MCP server run on.
type core struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *storage.DB
	prefs   *storage.PreferenceStore
	nav     *service.NavStack
	session *service.SessionService
	shelves *service.ShelfController
	detail  *service.DetailController
}

func newCore(cfg *config.Config, logger *zap.Logger, emitter service.EventEmitter) (*core, error) {
	db, err := storage.New(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	prefs := storage.NewPreferenceStore(db)
	if cfg.UseKeychain {
		prefs.WithSecrets(secret.NewKeychainStore(), domain.KeyAuthToken)
	}

	catalog := microblog.New(cfg.CatalogBaseURL, cfg.HTTPTimeout, logger)
	search := googlebooks.New(cfg.SearchBaseURL, cfg.HTTPTimeout, logger)

	nav := service.NewNavStack(emitter)
	session := service.NewSessionService(prefs, catalog, emitter, nav, logger, cfg.SignOutGrace)

	return &core{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		prefs:   prefs,
		nav:     nav,
		session: session,
		shelves: service.NewShelfController(session, catalog, search, prefs, emitter, nav, logger, cfg.SearchSettleDelay),
		detail:  service.NewDetailController(session, catalog, emitter, nav, logger),
	}, nil
}

func (c *core) Close() {
	c.shelves.Close()
	c.detail.Close()
	if err := c.db.Close(); err != nil {
		c.logger.Warn("close database", zap.Error(err))
	}
}
