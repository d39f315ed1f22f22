package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/automation"
	"github.com/SophieEDesign/marketinghub-sub008/internal/core/email"
	"github.com/SophieEDesign/marketinghub-sub008/internal/core/formula"
	"github.com/SophieEDesign/marketinghub-sub008/internal/core/records"
	"github.com/SophieEDesign/marketinghub-sub008/internal/modules/automation/models"
	"github.com/SophieEDesign/marketinghub-sub008/internal/modules/automation/repositories"
	"github.com/SophieEDesign/marketinghub-sub008/internal/modules/automation/services"
	"github.com/SophieEDesign/marketinghub-sub008/internal/shared/config"
	"github.com/SophieEDesign/marketinghub-sub008/internal/shared/database"
)

// OpenFunc opens the automation database
type OpenFunc func() (*database.DB, error)

// NewRootCommand returns the root command with all subcommands attached
func NewRootCommand(ctx context.Context, cfg *config.Config, open OpenFunc) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "automation",
		Short:         "Run and inspect table automations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(NewEvalCommand())
	rootCmd.AddCommand(NewTickCommand(ctx, cfg, open))
	rootCmd.AddCommand(NewRunCommand(ctx, cfg, open))
	return rootCmd
}

// NewEvalCommand evaluates a formula against a JSON record
func NewEvalCommand() *cobra.Command {
	var record, fields string
	cmd := &cobra.Command{
		Use:     "eval [formula]",
		Example: `$ automation eval 'IF({score} > 10, "high", "low")' --record '{"score": 12}'`,
		Short:   "Evaluate a formula",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := formula.Compile(args[0])
			if err != nil {
				return err
			}
			row := formula.Row{}
			if record != "" {
				if err := json.Unmarshal([]byte(record), &row); err != nil {
					return fmt.Errorf("invalid --record: %w", err)
				}
			}
			var meta []formula.FieldMeta
			if fields != "" {
				if err := json.Unmarshal([]byte(fields), &meta); err != nil {
					return fmt.Errorf("invalid --fields: %w", err)
				}
			}
			result := formula.Evaluate(root, row, meta)
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"result":     result,
				"display":    formula.ToString(result),
				"is_error":   formula.IsSentinel(result),
				"references": formula.ReferencedFields(root),
			})
		},
	}
	cmd.Flags().StringVar(&record, "record", "", "Record as a JSON object")
	cmd.Flags().StringVar(&fields, "fields", "", "Field metadata as a JSON array")
	return cmd
}

// NewTickCommand runs one scheduler pass over the database
func NewTickCommand(ctx context.Context, cfg *config.Config, open OpenFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run due schedule-triggered automations once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			service, closeDB, err := buildService(cfg, open)
			if err != nil {
				return err
			}
			defer closeDB()
			return printJSON(cmd.OutOrStdout(), service.Tick(ctx))
		},
	}
}

// NewRunCommand runs one automation manually
func NewRunCommand(ctx context.Context, cfg *config.Config, open OpenFunc) *cobra.Command {
	var payload string
	cmd := &cobra.Command{
		Use:   "run [automation-id]",
		Short: "Run an automation now, whatever its trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid automation id %q: %w", args[0], err)
			}
			data := map[string]interface{}{}
			if payload != "" {
				if err := json.Unmarshal([]byte(payload), &data); err != nil {
					return fmt.Errorf("invalid --payload: %w", err)
				}
			}
			service, closeDB, err := buildService(cfg, open)
			if err != nil {
				return err
			}
			defer closeDB()

			run, err := service.RunManual(ctx, id, data)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), run)
		},
	}
	cmd.Flags().StringVar(&payload, "payload", "", "Trigger payload as a JSON object")
	return cmd
}

func buildService(cfg *config.Config, open OpenFunc) (*services.AutomationService, func(), error) {
	db, err := open()
	if err != nil {
		return nil, nil, err
	}
	if db.Driver == database.DriverSQLite {
		if err := db.GORM.AutoMigrate(models.All()...); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate sqlite schema: %w", err)
		}
	}

	runRepo := repositories.NewRunRepo(db.GORM)
	store := records.NewGormStore(db.GORM)
	opts := []automation.ExecutorOption{
		automation.WithActionTimeout(cfg.ActionTimeout),
		automation.WithHTTPClient(&http.Client{Timeout: cfg.WebhookTimeout}),
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
			db.Close()
			return nil, nil, err
		}
		opts = append(opts, automation.WithMailer(email.NewMailer(emailProvider)))
	}
	executor := automation.NewExecutor(store, opts...)
	engine := automation.NewEngine(runRepo, store, executor)
	service := services.NewAutomationService(repositories.NewAutomationRepo(db.GORM), runRepo, engine, time.Now)
	return service, func() { db.Close() }, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
