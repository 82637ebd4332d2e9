package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sbnpy/clubsight/internal/domain/auth"
	"github.com/sbnpy/clubsight/internal/domain/catalog"
	"github.com/sbnpy/clubsight/internal/domain/clients"
	"github.com/sbnpy/clubsight/internal/domain/expenses"
	"github.com/sbnpy/clubsight/internal/domain/margin"
	"github.com/sbnpy/clubsight/internal/domain/recovery"
	"github.com/sbnpy/clubsight/internal/domain/subscriptions"
	"github.com/sbnpy/clubsight/internal/domain/tbo"
	"github.com/sbnpy/clubsight/internal/domain/vad"
	"github.com/sbnpy/clubsight/internal/server"
	"github.com/sbnpy/clubsight/internal/session"
	"github.com/sbnpy/clubsight/pkg/config"
	"github.com/sbnpy/clubsight/pkg/cron"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	// Stores
	Credentials *auth.Store
	Sessions    *session.Store

	// Services
	SubscriptionsService *subscriptions.Service
	RecoveryService      *recovery.Service
	ExpensesService      *expenses.Service
	TBOService           *tbo.Service
	VADService           *vad.Service
	MarginService        *margin.Service
	CatalogService       *catalog.Service
	ClientsService       *clients.Service

	// Background jobs
	Scheduler *cron.Scheduler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initStores(); err != nil {
		return nil, fmt.Errorf("failed to init stores: %w", err)
	}
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	deps.Scheduler = cron.NewScheduler(deps.Sessions, cfg.Session.JanitorPeriod, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initStores loads the credential file and creates the session registry
func (d *Dependencies) initStores() error {
	f, err := os.Open(d.Config.Auth.CredentialFile)
	if err != nil {
		return fmt.Errorf("open credential file: %w", err)
	}
	defer f.Close()

	creds, err := auth.LoadStore(f, d.Logger)
	if err != nil {
		return err
	}
	d.Credentials = creds
	d.Sessions = session.NewStore(d.Config.Session.IdleTimeout, d.Logger)

	d.Logger.Info("stores initialized")
	return nil
}

// initServices initializes all analyzer services
func (d *Dependencies) initServices() error {
	var images *catalog.ImageFinder
	if d.Config.Catalog.ImageLookupEnabled {
		images = catalog.NewImageFinder(d.Config.Catalog.ImageLookupRPS)
	}

	d.SubscriptionsService = subscriptions.NewService(d.Logger)
	d.RecoveryService = recovery.NewService(d.Logger)
	d.ExpensesService = expenses.NewService(d.Logger)
	d.TBOService = tbo.NewService(d.Logger)
	d.VADService = vad.NewService(d.Logger)
	d.MarginService = margin.NewService(d.Logger)
	d.CatalogService = catalog.NewService(images, d.Logger)
	d.ClientsService = clients.NewService(d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// ServerServices groups the analyzers for the HTTP layer
func (d *Dependencies) ServerServices() server.Services {
	return server.Services{
		Subscriptions: d.SubscriptionsService,
		Recovery:      d.RecoveryService,
		Expenses:      d.ExpensesService,
		TBO:           d.TBOService,
		VAD:           d.VADService,
		Margin:        d.MarginService,
		Catalog:       d.CatalogService,
		Clients:       d.ClientsService,
	}
}

// Cleanup stops background jobs
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	d.Logger.Info("cleanup completed")
}
