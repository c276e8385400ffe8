package main

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"go.uber.org/zap"

	epilogueApp "epilogue/internal/app"
	"epilogue/internal/config"
	"epilogue/internal/deeplink"
	"epilogue/internal/logging"
)

//go:embed all:frontend/dist
var assets embed.FS

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// A URL argument comes from the OS URL handler; the GUI (or the
	// instance already running) takes it.
	if len(os.Args) > 1 && !strings.Contains(os.Args[1], "://") {
		code := runCommand(cfg, logger, os.Args[1:])
		_ = logger.Sync()
		os.Exit(code)
	}

	app := epilogueApp.New(cfg, logger)
	for _, arg := range os.Args[1:] {
		app.OpenURL(arg)
	}

	// macOS needs an Edit menu for Cmd+C/V/X/A to reach the WebView
	appMenu := menu.NewMenu()
	appMenu.Append(menu.EditMenu())

	err = wails.Run(&options.App{
		Title:     "Epilogue",
		Width:     420,
		Height:    780,
		MinWidth:  360,
		MinHeight: 560,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 255, G: 255, B: 255, A: 1},
		Menu:             appMenu,
		OnStartup:        app.Startup,
		OnShutdown:       app.Shutdown,
		SingleInstanceLock: &options.SingleInstanceLock{
			UniqueId:               "blog.micro.epilogue",
			OnSecondInstanceLaunch: app.OnSecondInstance,
		},
		Bind: []interface{}{
			app,
		},
		Mac: &mac.Options{
			TitleBar: mac.TitleBarDefault(),
			About: &mac.AboutInfo{
				Title:   "Epilogue",
				Message: "Track the books you are reading on micro.blog",
			},
			OnUrlOpen: app.OpenURL,
		},
	})

	if err != nil {
		logger.Error("wails", zap.Error(err))
	}
}

// runCommand handles the headless entry points:
//
//	epilogue mcp              serve the MCP tools on stdio
//	epilogue open-url <url>   hand a sign-in link to the running app
func runCommand(cfg *config.Config, logger *zap.Logger, args []string) int {
	switch args[0] {
	case "mcp":
		if err := epilogueApp.ServeMCP(cfg, logger, version); err != nil {
			logger.Error("mcp", zap.Error(err))
			return 1
		}
		return 0
	case "open-url":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: epilogue open-url <url>")
			return 2
		}
		path, err := deeplink.Deliver(cfg.InboxDir(), args[1])
		if err != nil {
			logger.Error("open-url", zap.Error(err))
			return 1
		}
		logger.Debug("link delivered", zap.String("path", path))
		return 0
	case "version":
		fmt.Println(version)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want mcp, open-url or version)\n", args[0])
		return 2
	}
}
