package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"meal-order-assistant/internal/app"
	"meal-order-assistant/internal/catering"
	"meal-order-assistant/internal/config"
	"meal-order-assistant/internal/database"
	"meal-order-assistant/internal/llm"
	"meal-order-assistant/internal/metrics"
	"meal-order-assistant/internal/prefs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.NewFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	client := catering.NewClient(cfg.ProxyURL, []byte(cfg.ProxySecret))
	prefsRepo := prefs.NewRepository(db.SQL)
	metricsStore := metrics.NewStore(db.SQL)

	// The generator stays nil while the provider config is incomplete; the
	// planner routes to config collection instead of calling it.
	var gen llm.TextGenerator
	if cfg.AIConfigured() {
		switch cfg.AIProvider {
		case config.ProviderCustom:
			gen = llm.NewCustomClient(cfg)
		case config.ProviderGemini:
			geminiClient, err := llm.NewGeminiClient(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize Gemini client: %w", err)
			}
			if closer, ok := geminiClient.(llm.Closer); ok {
				defer closer.Close()
			}
			gen = geminiClient
		}
	}

	application := app.NewApp(client, gen, prefsRepo, metricsStore, logger)

	root := &cobra.Command{
		Use:           "meal-order-assistant",
		Short:         "Plan and order weekly meals on the catering platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var autoConfirm bool
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate a weekly plan, review it, and place the orders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return application.PlanWeek(cmd.Context(), autoConfirm)
		},
	}
	planCmd.Flags().BoolVarP(&autoConfirm, "yes", "y", false, "skip the confirmation prompt")

	calendarCmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show this week's meal slots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return application.ShowCalendar(cmd.Context())
		},
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show the last 4 weeks of orders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return application.ShowHistory(cmd.Context())
		},
	}

	menuCmd := &cobra.Command{
		Use:   "menu <date> <period>",
		Short: "Show the menu for one slot (e.g. menu 2024-06-10 lunch)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return application.ShowMenu(cmd.Context(), args[0], parsePeriod(args[1]))
		},
	}

	var addressID string
	orderCmd := &cobra.Command{
		Use:   "order <date> <period> <dish-id>",
		Short: "Place or replace a single order",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return application.OrderDish(cmd.Context(), args[0], parsePeriod(args[1]), args[2], addressID)
		},
	}
	orderCmd.Flags().StringVar(&addressID, "address", "", "delivery address id")

	cancelCmd := &cobra.Command{
		Use:   "cancel <date> <period>",
		Short: "Delete the order on one slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return application.CancelOrder(cmd.Context(), args[0], parsePeriod(args[1]))
		},
	}

	weekendsCmd := &cobra.Command{
		Use:       "weekends <on|off>",
		Short:     "Include or exclude weekends from planning",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return application.SetWeekends(cmd.Context(), args[0] == "on")
		},
	}

	root.AddCommand(planCmd, calendarCmd, historyCmd, menuCmd, orderCmd, cancelCmd, weekendsCmd)
	return root.ExecuteContext(ctx)
}

func parsePeriod(arg string) catering.MealPeriod {
	switch strings.ToLower(arg) {
	case "breakfast":
		return catering.PeriodBreakfast
	case "dinner":
		return catering.PeriodDinner
	default:
		return catering.PeriodLunch
	}
}
