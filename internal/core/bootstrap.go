package core

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"helpdesk/internal/activity"
	c "helpdesk/internal/cache"
	"helpdesk/internal/configuration"
	"helpdesk/internal/events"
	h "helpdesk/internal/helpers"
	m "helpdesk/internal/middlewares"
	"helpdesk/internal/models"
	"helpdesk/internal/notifier"
	"helpdesk/internal/services"
	"helpdesk/internal/twofactor"
	"helpdesk/internal/workers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	trustCleanupInterval = 6 * time.Hour
	pendingSecretMaxAge  = 24 * time.Hour
)

func CreateAdminUser(db *gorm.DB, config models.Configuration) {
	adminUser := models.User{
		FirstName:    "admin",
		LastName:     "admin",
		Email:        config.App.AdminEmail,
		ProviderType: models.LocalProviderType,
		ProviderKey:  string(models.LocalProviderType),
		Role:         models.RoleAdmin,
		Approved:     true,
	}

	hash, _ := h.CreateHash(config.App.AdminPassword)
	adminUser.HashedPassword = hash
	db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}, {Name: "provider_key"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: "deleted_at", Value: nil},
		}},
		DoUpdates: clause.AssignmentColumns([]string{"hashed_password"}),
	}).Create(&adminUser)
}

// buildStores assembles the two-factor domain stores shared by the HTTP
// layer and the workers.
func buildStores(db *gorm.DB, config models.Configuration) (
	*twofactor.ProfileStore,
	*twofactor.TrustStore,
	*twofactor.Vault,
) {
	profiles := &twofactor.ProfileStore{DB: db}

	trust := &twofactor.TrustStore{
		DB:   db,
		Salt: config.App.FingerprintSalt,
		TTL:  time.Duration(config.TwoFactor.TrustDurationDays) * 24 * time.Hour,
	}

	vault := &twofactor.Vault{
		DB:       db,
		Length:   config.TwoFactor.RecoveryCodeLength,
		Cooldown: time.Duration(config.TwoFactor.RegenerationHours) * time.Hour,
	}

	return profiles, trust, vault
}

func StartWorkers(
	profile models.Profile,
	eventsManager *EventsManager,
	db *gorm.DB,
	activityLogger activity.IActivityLogger,
	notify notifier.INotifier,
	eventRouter *EventRouter,
	config models.Configuration,
	cache c.ICache,
	appIdentity string,
) {
	eventParams := &events.EventParams{
		WebURL:         config.App.WebURL,
		AdminEmail:     config.App.AdminEmail,
		Notifier:       notify,
		Publisher:      eventRouter,
		DB:             db,
		ActivityLogger: activityLogger,
	}

	notifications := eventsManager.GetSubscriber(configuration.EventsNotifications).Subscribe()
	go events.HandleEvents(eventParams, notifications)
	zap.L().Info("Started notifications worker")

	startWorker(profile.Workers.SecurityEvents, "security_events", cache, appIdentity, func(_ context.Context) {
		securityEvents := eventsManager.GetSubscriber(configuration.EventsSecurityEvents).Subscribe()
		events.HandleEvents(eventParams, securityEvents)
	})

	startWorker(profile.Workers.TrustCleanup, "trust_cleanup", cache, appIdentity, func(ctx context.Context) {
		_, trust, _ := buildStores(db, config)
		worker := &workers.TrustCleanupWorker{
			DB:                  db,
			Trust:               trust,
			PendingSecretMaxAge: pendingSecretMaxAge,
			RunInterval:         trustCleanupInterval,
			ActivityLogger:      activityLogger,
		}
		worker.Start(ctx)
	})
}

func startWorker(
	mode models.WorkerMode,
	workerName string,
	cache c.ICache,
	appIdentity string,
	runWorker func(context.Context),
) {
	if mode == models.WorkerModeDisabled {
		return
	}

	if mode == models.WorkerModeSingleton {
		go startSingletonWorker(cache, appIdentity, workerName, runWorker)
	} else {
		go runWorker(context.Background())
		zap.L().Info("Started worker", zap.String("worker", workerName))
	}
}

func startSingletonWorker(cache c.ICache, instanceID string, workerName string, runWorker func(context.Context)) {
	lockKey := fmt.Sprintf(configuration.CacheAppWorkerLockKey, workerName)
	ticker := time.NewTicker(time.Duration(configuration.CacheAppWorkerLockRefresh) * time.Second)
	defer ticker.Stop()

	var workerStarted bool
	var cancelWorker context.CancelFunc

	for {
		if !workerStarted {
			acquired, err := cache.TryAcquireLock(lockKey, instanceID, configuration.CacheAppWorkerLockTTL)
			if err != nil {
				zap.L().Error("Failed to acquire worker lock", zap.String("worker", workerName), zap.Error(err))
			}

			if acquired {
				zap.L().Info("Acquired worker lock, starting worker", zap.String("worker", workerName))
				workerStarted = true
				var ctx context.Context
				ctx, cancelWorker = context.WithCancel(context.Background())
				go runWorker(ctx)
			}
		} else {
			refreshed, err := cache.RefreshLock(lockKey, instanceID, configuration.CacheAppWorkerLockTTL)
			if err != nil || !refreshed {
				zap.L().Warn("Lost worker lock, stopping worker", zap.String("worker", workerName))
				workerStarted = false
				if cancelWorker != nil {
					cancelWorker()
					cancelWorker = nil
				}
			}
		}

		<-ticker.C
	}
}

func StartHTTPServer(
	config models.Configuration,
	db *gorm.DB,
	cache c.ICache,
	activityLogger activity.IActivityLogger,
	notify notifier.INotifier,
	eventRouter *EventRouter,
) {
	r := chi.NewRouter()

	r.Use(middleware.Timeout(5 * time.Second))
	r.Use(m.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.App.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"X-Two-Factor-Warning", "X-Two-Factor-Debug"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	providers := configuration.LoadProviders(
		context.Background(),
		config.App.APIURL,
		config.Auth.Providers,
	)

	authConfig := config.App.GetAuthConfig()
	profiles, trust, vault := buildStores(db, config)

	engine := &twofactor.Engine{
		Config:   twofactor.NewEnforcementConfig(config.TwoFactor),
		Profiles: profiles,
		Trust:    trust,
		Record:   newEngineRecorder(db, activityLogger, eventRouter, config.App.WebURL),
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Use(m.Authenticate(authConfig.JWTSecret))
		apiRouter.Use(m.AudienceValidate)
		apiRouter.Use(m.EnforceTwoFactor(engine, db, cache))
		apiRouter.Use(m.RateLimit(cache))

		apiRouter.Mount("/v1/auth", services.AuthService{
			DB:             db,
			Cache:          cache,
			AuthConfig:     authConfig,
			Providers:      providers,
			Publisher:      eventRouter,
			ActivityLogger: activityLogger,
		}.Routes())

		apiRouter.Mount("/v1/two-factor", services.TwoFactorService{
			DB:             db,
			Cache:          cache,
			AuthConfig:     authConfig,
			Engine:         engine,
			Profiles:       profiles,
			Trust:          trust,
			Vault:          vault,
			Issuer:         config.TwoFactor.Issuer,
			Publisher:      eventRouter,
			ActivityLogger: activityLogger,
		}.Routes())

		apiRouter.Mount("/v1/admin", services.AdminService{
			DB:             db,
			Profiles:       profiles,
			Trust:          trust,
			Vault:          vault,
			WebURL:         config.App.WebURL,
			Publisher:      eventRouter,
			ActivityLogger: activityLogger,
		}.Routes())
	})

	zap.L().Info("HTTP server starting", zap.Int("port", config.App.Port))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.App.Port),
		Handler:      otelhttp.NewHandler(r, "http.server"),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  5 * time.Second,
	}

	err := server.ListenAndServe()
	if err != nil {
		zap.L().Error("Failed to start the app", zap.Error(err))
	}
}

// newEngineRecorder turns engine audit callbacks into activity entries, and
// raises the administrator alert when the loop breaker fires.
func newEngineRecorder(
	db *gorm.DB,
	activityLogger activity.IActivityLogger,
	eventRouter *EventRouter,
	webURL string,
) func(event string, userID uuid.UUID, fields map[string]string) {
	return func(event string, userID uuid.UUID, fields map[string]string) {
		filterFields := map[string]string{
			"action":  event,
			"user_id": userID.String(),
		}
		for k, v := range fields {
			filterFields[k] = v
		}

		entry := models.Activity{
			Message: event,
			Filter:  activity.NewLogFilter(filterFields),
		}
		if err := activityLogger.Send(entry); err != nil {
			zap.L().Error("Failed to log enforcement event",
				zap.String("event", event),
				zap.Error(err))
		}

		if event == twofactor.EventLoopBreakTriggered {
			var user models.User
			if err := db.Select("email").Where("id = ?", userID).First(&user).Error; err != nil {
				zap.L().Error("Failed to load user for loop break alert", zap.Error(err))
				return
			}
			events.NewLoopBreakAlert(eventRouter, userID.String(), user.Email,
				webURL, fields["path"]).Trigger()
		}
	}
}
