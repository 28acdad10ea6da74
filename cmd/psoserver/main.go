// Command psoserver is the main game/login server binary: it loads
// system/config.yaml (or a path given on the command line), opens one TCP
// listener per configured client version, and dispatches every connection
// through the command registry and chat command layer (spec.md §6:
// "a single executable reads system/config.json and directories under
// system/" — this repo's config is YAML, see internal/config).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/openpso/server/internal/client"
	"github.com/openpso/server/internal/config"
	"github.com/openpso/server/internal/crypto"
	"github.com/openpso/server/internal/frontend"
	"github.com/openpso/server/internal/handlers"
	"github.com/openpso/server/internal/license"
	"github.com/openpso/server/internal/serverstate"
)

func main() {
	configPath := flag.String("config", "system/config.yaml", "path to the server configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	_ = level.UnmarshalText([]byte(cfg.LogLevel))
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	licenses, err := license.LoadStore(cfg.LicenseFilePath)
	if err != nil {
		log.Error("failed to load license store", "path", cfg.LicenseFilePath, "error", err)
		os.Exit(1)
	}

	state := serverstate.New(cfg.ServerName, licenses)
	for _, path := range cfg.BBKeyFilePaths {
		f, err := os.Open(path)
		if err != nil {
			log.Error("failed to open BB key file", "path", path, "error", err)
			os.Exit(1)
		}
		kf, err := crypto.LoadBBKeyFile(f)
		f.Close()
		if err != nil {
			log.Error("failed to parse BB key file", "path", path, "error", err)
			os.Exit(1)
		}
		state.BBKeys = append(state.BBKeys, kf)
	}

	registry := handlers.NewRegistry()
	handlers.RegisterHandshakeHandlers(registry)
	handlers.RegisterLobbyMovementHandlers(registry)
	handlers.RegisterSubcommandHandlers(registry)
	chatRegistry := handlers.NewChatRegistry()
	handlers.RegisterDefaultChatCommands(chatRegistry)

	srv := frontend.New(cfg, func(ctx context.Context, c *client.Client) {
		if err := handlers.ReadLoop(ctx, state, registry, chatRegistry, c); err != nil {
			c.Log.Debug("connection ended", "error", err)
		}
	}, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("starting server", "name", cfg.ServerName, "ports", len(cfg.Ports))
	if err := srv.Run(ctx); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}

	if err := licenses.Persist(); err != nil {
		log.Error("failed to persist license store on shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server shut down cleanly")
}
