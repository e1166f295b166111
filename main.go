package main

import (
	"context"

	"helpdesk/internal/configuration"
	"helpdesk/internal/core"
	"helpdesk/internal/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	zap.ReplaceGlobals(zap.Must(zap.NewProduction()))

	config := configuration.Read()
	core.NewLogger(config.App.LogLevel)

	profile := configuration.GetProfile(config.App.Profile)

	shutdownTelemetry := core.StartTelemetry(config.Telemetry)
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			zap.L().Error("Failed to flush telemetry", zap.Error(err))
		}
	}()

	db := database.InitDB(config.Database)
	cache := core.NewCache(config.Cache)
	notify := core.NewNotifier(config.Notifier)
	activityLogger := core.NewActivityLogger(config.Activity)

	var eventsManager *core.EventsManager
	var eventRouter *core.EventRouter
	if profile.NeedsEvents() {
		eventsManager = core.NewEventsManager(config.Events)
		eventRouter = core.NewEventRouter(eventsManager)
	}

	if profile.HTTPServer {
		core.CreateAdminUser(db, config)
	}

	appIdentity := uuid.New().String()

	if cache != nil {
		go cache.StartIdentityTicker(appIdentity)
		zap.L().Info("Cache identity ticker started")
	}

	if profile.Workers.AnyEnabled() {
		core.StartWorkers(
			profile,
			eventsManager,
			db,
			activityLogger,
			notify,
			eventRouter,
			config,
			cache,
			appIdentity,
		)
	}

	if profile.HTTPServer {
		core.StartHTTPServer(config, db, cache, activityLogger, notify, eventRouter)
	} else if profile.Workers.AnyEnabled() {
		zap.L().Info("Running in worker-only mode")
		select {} // Block forever
	}
}
