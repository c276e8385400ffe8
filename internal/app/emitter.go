package app

import (
	"context"
	"sync"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"epilogue/internal/service"
)

// wailsEmitter forwards service events to the WebView. Alerts also open a
// native error dialog. Events emitted before Startup are dropped.
type wailsEmitter struct {
	mu     sync.RWMutex
	ctx    context.Context
	logger *zap.Logger
}

func (e *wailsEmitter) attach(ctx context.Context) {
	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()
}

func (e *wailsEmitter) Emit(_ context.Context, event string, data any) {
	e.mu.RLock()
	ctx := e.ctx
	e.mu.RUnlock()
	if ctx == nil {
		e.logger.Debug("event before startup", zap.String("event", event))
		return
	}

	wailsRuntime.EventsEmit(ctx, event, data)

	if alert, ok := data.(service.Alert); ok && event == service.EventAlert {
		go func() {
			_, err := wailsRuntime.MessageDialog(ctx, wailsRuntime.MessageDialogOptions{
				Type:    wailsRuntime.ErrorDialog,
				Title:   alert.Title,
				Message: alert.Message,
			})
			if err != nil {
				e.logger.Warn("show alert", zap.Error(err))
			}
		}()
	}
}

// logEmitter is the EventEmitter used in MCP-only mode (no Wails frontend).
// Alerts reach the agent through tool results, so they are only logged here.
type logEmitter struct {
	logger *zap.Logger
}

func (e logEmitter) Emit(_ context.Context, event string, data any) {
	if alert, ok := data.(service.Alert); ok {
		e.logger.Info("alert", zap.String("title", alert.Title), zap.String("message", alert.Message))
		return
	}
	e.logger.Debug("event", zap.String("event", event))
}
