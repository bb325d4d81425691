// cmd/insurecontent/main.go
//
// Entry point for the insurecontent terminal client.
//
// Flow:
// 1. Load config.yaml (created with defaults on first run)
// 2. Open the diagnostics log and the activity logbook
// 3. Optionally start the in-process sandbox API
// 4. Wire the API client into the services and launch the TUI

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/insurecontent/internal/apiclient"
	"github.com/kingrea/insurecontent/internal/catalog"
	"github.com/kingrea/insurecontent/internal/config"
	"github.com/kingrea/insurecontent/internal/generation"
	"github.com/kingrea/insurecontent/internal/logbook"
	"github.com/kingrea/insurecontent/internal/logging"
	"github.com/kingrea/insurecontent/internal/sandbox"
	"github.com/kingrea/insurecontent/internal/schedule"
	"github.com/kingrea/insurecontent/internal/subscription"
	"github.com/kingrea/insurecontent/internal/tui"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (defaults to the per-user config dir)")
	useSandbox := flag.Bool("sandbox", false, "run against an in-process sandbox API instead of api.base_url")
	flag.Parse()

	if err := run(*configPath, *useSandbox); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, useSandbox bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogDir(), logging.ParseLevel(cfg.Settings.Logging.Level))
	if err != nil {
		return err
	}
	defer logger.Close()

	book, err := logbook.New(filepath.Join(cfg.LogDir(), logbook.FileName))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseURL := cfg.Settings.API.BaseURL
	if useSandbox {
		srv := sandbox.NewServer(sandbox.DefaultSettings(), sandbox.WithLogger(logger.Logger))
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("start sandbox: %w", err)
		}
		defer func() {
			if err := srv.Shutdown(context.Background()); err != nil {
				logger.Warn("sandbox shutdown failed", logging.Err(err))
			}
		}()
		baseURL = srv.APIURL()
		book.Info("Sandbox API at %s · sign in as %s / %s", baseURL, sandbox.DefaultAccount.Email, sandbox.DefaultAccount.Password)
	}

	opts := []apiclient.Option{
		apiclient.WithLogger(logger.Logger),
		apiclient.WithToken(cfg.Settings.Auth.Token),
	}
	if cfg.Settings.API.Timeout > 0 {
		opts = append(opts, apiclient.WithTimeout(cfg.Settings.API.Timeout))
	}
	if cfg.Settings.API.RequestsPerSecond > 0 {
		opts = append(opts, apiclient.WithRateLimit(cfg.Settings.API.RequestsPerSecond, cfg.Settings.API.Burst))
	}
	client, err := apiclient.New(baseURL, opts...)
	if err != nil {
		return err
	}
	logger.Info("client starting", slog.String("api", client.BaseURL()), slog.Bool("sandbox", useSandbox))

	clip := schedule.SystemClipboard{}
	mgr := schedule.NewManager(client,
		schedule.WithClipboard(clip),
		schedule.WithLogbook(book),
		schedule.WithLogger(logger.Logger),
		schedule.WithDownloadDir(cfg.DownloadDir()),
	)
	services := tui.Services{
		Auth:      client,
		Catalog:   catalog.New(client, book),
		Generator: generation.New(client, mgr, generation.WithLogbook(book), generation.WithLogger(logger.Logger)),
		Schedules: mgr,
		Dashboard: schedule.NewDashboard(client, apiclient.IsNotFound, cfg.Settings.Dashboard.RecentLimit, book, logger.Logger),
		Subscription: subscription.NewService(client,
			subscription.WithClipboard(clip),
			subscription.WithLogbook(book),
			subscription.WithLogger(logger.Logger),
		),
		Logbook: book,
		Config:  cfg,
	}

	p := tea.NewProgram(
		tui.NewApp(services, tui.WithContext(ctx), tui.WithLogger(logger.Logger)),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	// a 401 on any call sends the agent back to the login screen
	client.SetUnauthorizedHandler(func() {
		p.Send(tui.SessionExpiredMsg{})
	})

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}
