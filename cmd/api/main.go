package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/rs/zerolog/log"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/automation"
	"github.com/SophieEDesign/marketinghub-sub008/internal/core/email"
	"github.com/SophieEDesign/marketinghub-sub008/internal/core/events"
	"github.com/SophieEDesign/marketinghub-sub008/internal/core/formula"
	"github.com/SophieEDesign/marketinghub-sub008/internal/core/llm"
	"github.com/SophieEDesign/marketinghub-sub008/internal/core/records"
	"github.com/SophieEDesign/marketinghub-sub008/internal/modules/automation/handlers"
	"github.com/SophieEDesign/marketinghub-sub008/internal/modules/automation/models"
	"github.com/SophieEDesign/marketinghub-sub008/internal/modules/automation/repositories"
	"github.com/SophieEDesign/marketinghub-sub008/internal/modules/automation/services"
	"github.com/SophieEDesign/marketinghub-sub008/internal/shared/config"
	"github.com/SophieEDesign/marketinghub-sub008/internal/shared/database"
	"github.com/SophieEDesign/marketinghub-sub008/internal/shared/utils"

	_ "github.com/SophieEDesign/marketinghub-sub008/cmd/api/docs"
)

// @title Automation Engine API
// @version 1.0
// @description Automations over table records: triggers, conditions, action pipelines, run history and formulas
// @termsOfService http://swagger.io/terms/
// @contact.name API Support
// @license.name MIT
// @host localhost:8080
// @BasePath /
func main() {
	// Load config
	cfg := config.LoadConfig()
	utils.InitLogger(utils.LogOptions{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Console:    cfg.IsDevelopment(),
	})
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("🚀 Starting automation api")

	// Init database
	db := database.NewDB(cfg.DBDriver, cfg.DatabaseURL)
	defer db.Close()

	// Postgres schema is owned by cmd/migrate, sqlite is migrated in place
	if db.Driver == database.DriverSQLite {
		if err := db.GORM.AutoMigrate(models.All()...); err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to migrate sqlite schema")
		}
	}

	// Init repositories
	automationRepo := repositories.NewAutomationRepo(db.GORM)
	runRepo := repositories.NewRunRepo(db.GORM)
	recordStore := records.NewGormStore(db.GORM)

	// Init executor
	executorOpts := []automation.ExecutorOption{
		automation.WithActionTimeout(cfg.ActionTimeout),
		automation.WithHTTPClient(&http.Client{Timeout: cfg.WebhookTimeout}),
	}
	if cfg.LLMAPIKey != "" {
		generator, err := llm.NewProvider(llm.ProviderConfig{
			Type:    llm.ProviderType(cfg.LLMProvider),
			APIKey:  cfg.LLMAPIKey,
			Model:   cfg.LLMModel,
			BaseURL: cfg.LLMBaseURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to initialize LLM provider")
		}
		executorOpts = append(executorOpts, automation.WithTextGenerator(generator))
		log.Info().Str("provider", generator.GetProviderName()).Str("model", generator.Model()).Msg("🤖 generate_text enabled")
	} else {
		log.Warn().Msg("⚠️  LLM provider not configured, generate_text actions will fail")
	}
	if provider, key := cfg.EmailAPIKey(); key != "" {
		emailProvider, err := email.NewProvider(email.ProviderConfig{
			Type:      email.ProviderType(provider),
			APIKey:    key,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
			Timeout:   cfg.WebhookTimeout,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to initialize email provider")
		}
		mailer := email.NewMailer(emailProvider)
		executorOpts = append(executorOpts, automation.WithMailer(mailer))
		log.Info().Str("provider", mailer.GetProviderName()).Msg("📧 send_email delivery enabled")
	} else {
		log.Warn().Msg("⚠️  Email service not configured, send_email actions are logged only")
	}
	executor := automation.NewExecutor(recordStore, executorOpts...)

	// Init engine and service
	engine := automation.NewEngine(runRepo, recordStore, executor)
	automationService := services.NewAutomationService(automationRepo, runRepo, engine, time.Now)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Scheduler
	if cfg.SchedulerEnabled {
		driver := automation.NewCronDriver(automationService.Scheduler(), cfg.SchedulerSpec)
		if err := driver.Start(); err != nil {
			log.Fatal().Err(err).Str("spec", cfg.SchedulerSpec).Msg("❌ Failed to start scheduler")
		}
		defer driver.Stop()
		log.Info().Str("spec", cfg.SchedulerSpec).Time("next", driver.Next()).Msg("⏰ Scheduler started")
	}

	// Record events (postgres LISTEN/NOTIFY)
	if cfg.RecordEventsEnabled {
		if db.Driver != database.DriverPostgres {
			log.Warn().Str("driver", db.Driver).Msg("⚠️  Record events need postgres, listener disabled")
		} else {
			listener := events.NewListener(cfg.DatabaseURL, cfg.RecordEventsChannel, func(ctx context.Context, ev automation.Event) {
				if _, err := automationService.DispatchEvent(ctx, ev); err != nil {
					log.Error().Err(err).Str("table_id", ev.TableID).Msg("❌ Failed to dispatch record event")
				}
			})
			if err := listener.Start(ctx); err != nil {
				log.Fatal().Err(err).Msg("❌ Failed to start record event listener")
			}
			defer listener.Close()
		}
	}

	// Init handlers
	automationHandler := handlers.NewAutomationHandler(automationService)
	formulaHandler := handlers.NewFormulaHandler(formula.NewEvaluator())

	// Init Fiber app
	app := fiber.New(fiber.Config{
		AppName: "Automation Engine API",
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New())

	// Swagger
	app.Get("/swagger/*", swagger.HandlerDefault)

	handlers.RegisterRoutes(app, automationHandler, formulaHandler)

	go func() {
		<-ctx.Done()
		log.Info().Msg("🛑 Shutting down automation api")
		if err := app.ShutdownWithTimeout(cfg.ActionTimeout + 5*time.Second); err != nil {
			log.Error().Err(err).Msg("❌ Shutdown error")
		}
	}()

	log.Info().Msgf("✅ automation api running at :%s", cfg.Port)
	log.Info().Msgf("📄 Swagger UI: http://localhost:%s/swagger/", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Error().Err(err).Msg("❌ Server stopped")
	}
}
