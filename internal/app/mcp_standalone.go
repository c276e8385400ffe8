package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"epilogue/internal/config"
	mcpserver "epilogue/internal/mcp"
)

// ServeMCP runs the app as a standalone MCP server on stdin/stdout with no GUI.
// It initializes storage, clients and controllers, and serves until interrupted.
func ServeMCP(cfg *config.Config, logger *zap.Logger, version string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c, err := newCore(cfg, logger, logEmitter{logger: logger.Named("events")})
	if err != nil {
		return err
	}
	defer c.Close()

	srv := mcpserver.New(mcpserver.Deps{
		Session: c.session,
		Shelves: c.shelves,
		Detail:  c.detail,
		Nav:     c.nav,
		Logger:  logger,
		Version: version,
	})
	defer srv.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("mcp server interrupted")
		return nil
	}
}
