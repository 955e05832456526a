// Command kestrel-host is the native process entrypoint: it parses
// process-level flags, wires an App, loads any plugins found in the
// plugin directory, and drives the frame loop until interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/kestrelrt/kestrel/kernel/engine"
	"github.com/kestrelrt/kestrel/kernel/utils"
)

func main() {
	var (
		pluginDir  = pflag.StringP("plugin-dir", "p", "", "directory to scan for .wasm plugins at startup")
		workers    = pflag.IntP("workers", "w", 0, "worker pool size (0 = cores-1)")
		headless   = pflag.Bool("headless", false, "run unfocused (skip systems that require focus)")
		logLevel   = pflag.String("log-level", "info", "log level: debug|info|warn|error")
	)
	pflag.Parse()

	logger := utils.NewLogger(utils.LoggerConfig{
		Level:     parseLevel(*logLevel),
		Component: "kestrel-host",
		Colorize:  true,
	})
	utils.SetGlobalLogger(logger)

	app := engine.New(engine.Config{WorkerCount: *workers, Logger: logger})
	app.SetFocused(!*headless)

	if *pluginDir != "" {
		loadPlugins(app, *pluginDir, logger)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		logger.Fatal("kestrel-host: run failed", utils.Err(err))
	}
}

func loadPlugins(app *engine.App, dir string, logger *utils.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Error("kestrel-host: read plugin dir", utils.String("dir", dir), utils.Err(err))
		return
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".wasm" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if _, err := app.AddPlugin(path); err != nil {
			logger.Error("kestrel-host: load plugin", utils.String("path", path), utils.Err(err))
		}
	}
}

func parseLevel(s string) utils.LogLevel {
	switch s {
	case "debug":
		return utils.DEBUG
	case "warn":
		return utils.WARN
	case "error":
		return utils.ERROR
	default:
		return utils.INFO
	}
}
