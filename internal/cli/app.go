// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"io"
	"log/slog"

	"github.com/jeranaias/eyeq-tui/internal/backend"
	"github.com/jeranaias/eyeq-tui/internal/config"
	"github.com/jeranaias/eyeq-tui/internal/controller"
	"github.com/jeranaias/eyeq-tui/internal/conversation"
	"github.com/jeranaias/eyeq-tui/internal/logging"
	"github.com/jeranaias/eyeq-tui/internal/storage"
)

// App holds the wired components shared by every command.
type App struct {
	Config     *config.Config
	ConfigPath string

	Log        *slog.Logger
	Store      *storage.Store
	Repo       *conversation.Repository
	Backend    *backend.Client
	Controller *controller.Controller

	logCloser io.Closer
}

// OpenApp loads configuration and wires storage, repository, backend and
// controller. Storage never fails to open; an unusable directory degrades
// to an in-memory session.
func OpenApp(configPath, logLevel string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, configError(err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, closer, err := logging.Open(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return nil, configError(err)
	}

	store := storage.Open(storage.Options{Dir: cfg.Storage.Dir, Driver: cfg.Storage.Driver}, log)
	repo := conversation.New(store, log)
	be := backend.New(backend.OptionsFromConfig(cfg.Backend, log))
	ctl := controller.New(repo, be, controller.Options{
		SessionID: cfg.Backend.SessionID,
		Logger:    log,
	})

	log.Info("eyeq started",
		"backend", be.BaseURL(),
		"storage", cfg.Storage.Driver,
		"available", store.Available(),
		"conversations", repo.Len())

	return &App{
		Config:     cfg,
		ConfigPath: config.ResolvePath(configPath),
		Log:        log,
		Store:      store,
		Repo:       repo,
		Backend:    be,
		Controller: ctl,
		logCloser:  closer,
	}, nil
}

// Close flushes pending writes and releases storage and the log file.
func (a *App) Close() error {
	a.Repo.Close()
	return errors.Join(a.Store.Close(), a.logCloser.Close())
}
