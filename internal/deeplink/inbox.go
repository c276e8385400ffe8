package deeplink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ── Deep-link inbox ─────────────────────────────────────────
// A URL opened while the app is running (or before it starts) is dropped
// into the inbox directory as <uuid>.url. The running app watches the
// directory and hands every URL to its handler.

const fileExt = ".url"

// Handler receives one deep link.
type Handler func(ctx context.Context, url string)

// Deliver writes url into the inbox at dir. The file appears atomically.
func Deliver(dir, url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", fmt.Errorf("deliver: empty url")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("deliver: create inbox: %w", err)
	}

	name := uuid.NewString()
	tmp := filepath.Join(dir, "."+name+".tmp")
	final := filepath.Join(dir, name+fileExt)

	if err := os.WriteFile(tmp, []byte(url+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("deliver: write: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("deliver: rename: %w", err)
	}
	return final, nil
}

// Inbox watches a directory for delivered links.
type Inbox struct {
	dir     string
	handler Handler
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Open starts watching dir. Links already waiting are handled first.
func Open(ctx context.Context, dir string, handler Handler, logger *zap.Logger) (*Inbox, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create inbox: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch inbox: %w", err)
	}

	in := &Inbox{
		dir:     dir,
		handler: handler,
		logger:  logger.Named("deeplink"),
		watcher: watcher,
		done:    make(chan struct{}),
	}
	in.drain(ctx)
	go in.watchLoop(ctx)
	return in, nil
}

// Dir is the directory being watched.
func (in *Inbox) Dir() string { return in.dir }

// Close stops the watcher and waits for the loop to exit.
func (in *Inbox) Close() error {
	err := in.watcher.Close()
	<-in.done
	return err
}

func (in *Inbox) drain(ctx context.Context) {
	matches, err := filepath.Glob(filepath.Join(in.dir, "*"+fileExt))
	if err != nil {
		in.logger.Warn("list inbox", zap.Error(err))
		return
	}
	sort.Strings(matches)
	for _, path := range matches {
		in.consume(ctx, path)
	}
}

func (in *Inbox) watchLoop(ctx context.Context) {
	defer close(in.done)
	for {
		select {
		case event, ok := <-in.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Write) {
				continue
			}
			if filepath.Ext(event.Name) != fileExt {
				continue
			}
			in.consume(ctx, event.Name)
		case err, ok := <-in.watcher.Errors:
			if !ok {
				return
			}
			in.logger.Warn("watcher error", zap.Error(err))
		case <-ctx.Done():
			return
		}
	}
}

// consume hands the link in path to the handler and removes the file.
// Links are consumed on a single goroutine, so a file already taken is simply gone.
func (in *Inbox) consume(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			in.logger.Warn("read link", zap.String("path", path), zap.Error(err))
		}
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		in.logger.Warn("remove link", zap.String("path", path), zap.Error(err))
	}

	link := strings.TrimSpace(string(data))
	if link == "" {
		return
	}
	in.logger.Debug("link received", zap.String("file", filepath.Base(path)))
	if in.handler != nil {
		in.handler(ctx, link)
	}
}
