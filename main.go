package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tournevent/sendcloud-fulfillment/internal/admin"
	"github.com/tournevent/sendcloud-fulfillment/internal/config"
	"github.com/tournevent/sendcloud-fulfillment/internal/server"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "sendcloud-fulfillment",
	Short:   "Sendcloud fulfillment provider for the store platform",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var parcelsCmd = &cobra.Command{
	Use:   "parcels",
	Short: "Print one page of Sendcloud parcels",
	RunE:  runParcels,
}

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Print the Sendcloud shipping options",
	RunE:  runOptions,
}

func init() {
	config.BindFlags(rootCmd.PersistentFlags())
	parcelsCmd.Flags().Int("page", 0, "zero-based page index")
	optionsCmd.Flags().Bool("json", false, "print options as JSON")

	rootCmd.AddCommand(serveCmd, parcelsCmd, optionsCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Load configuration
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Initialize telemetry
	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracer, tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(context.Background())
	}

	app, err := newApp(cfg, logger, tracer)
	if err != nil {
		return err
	}
	defer app.Close()

	logger.Info("Starting Sendcloud fulfillment service",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.Bool("mock", cfg.SendcloudUseMock),
		zap.Strings("providers", app.registry.Identifiers()),
	)

	srv := server.New(server.Config{
		Port:           cfg.Port,
		AdminProvider:  app.provider.Identifier(),
		AdminJWTSecret: cfg.AdminJWTSecret,
	}, server.Deps{
		Registry:   app.registry,
		Dispatcher: app.dispatcher,
		Events:     app.journal,
		Metrics:    app.metrics,
		Gatherer:   app.gatherer,
		Logger:     logger,
	})
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runParcels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	page, err := cmd.Flags().GetInt("page")
	if err != nil {
		return err
	}
	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	client := newSendcloudClient(cfg, nil, logger, nil)
	parcels, err := client.ListParcels(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing parcels: %w", err)
	}
	return admin.RenderText(cmd.OutOrStdout(), admin.Paginate(parcels, page, admin.DefaultPageSize))
}

func runOptions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	client := newSendcloudClient(cfg, nil, logger, nil)
	options, err := client.GetFulfillmentOptions(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing options: %w", err)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(options)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCARRIER\tMAX KG\tRETURN\tCOUNTRIES")
	for _, o := range options {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\t%v\n", o.ID, o.Name, o.Carrier, o.MaxWeight, o.IsReturn, o.CountryCodes())
	}
	return tw.Flush()
}
