package app

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"meal-order-assistant/internal/catering"
	"meal-order-assistant/internal/llm"
	"meal-order-assistant/internal/metrics"
	"meal-order-assistant/internal/planner"
	"meal-order-assistant/internal/prefs"
)

// cliUser is the preference key for the single CLI user.
const cliUser = "cli"

// App holds the application's dependencies for the CLI flows.
type App struct {
	client       catering.Client
	gen          llm.TextGenerator // nil while the AI provider is unconfigured
	prefsRepo    *prefs.Repository
	metricsStore *metrics.Store
	editor       *planner.ManualEditor
	log          *zap.Logger
}

// NewApp creates and initializes a new App instance.
func NewApp(
	client catering.Client,
	gen llm.TextGenerator,
	prefsRepo *prefs.Repository,
	metricsStore *metrics.Store,
	logger *zap.Logger,
) *App {
	return &App{
		client:       client,
		gen:          gen,
		prefsRepo:    prefsRepo,
		metricsStore: metricsStore,
		editor:       planner.NewManualEditor(client, logger),
		log:          logger,
	}
}

// PlanWeek runs one full planning session interactively: generate, review on
// the terminal, then execute on confirmation.
func (a *App) PlanWeek(ctx context.Context, autoConfirm bool) error {
	userPrefs, err := a.prefsRepo.Get(ctx, cliUser)
	if err != nil {
		a.log.Warn("failed to load preferences, using defaults", zap.Error(err))
	}

	session := planner.NewSession(a.client, a.gen, userPrefs, a.log)
	state := session.Start(ctx)

	if err := a.metricsStore.RecordMeta(ctx, session.LastMeta()); err != nil {
		a.log.Warn("failed to record usage metrics", zap.Error(err))
	}

	switch state {
	case planner.StateConfigNeeded:
		return fmt.Errorf("AI provider is not configured: set GEMINI_API_KEY, or CUSTOM_AI_ENDPOINT and CUSTOM_AI_API_KEY")
	case planner.StateFullyPlanned:
		fmt.Println("Nothing left to plan: every slot this week is already handled.")
		return nil
	case planner.StateFailed:
		for _, step := range session.Steps() {
			fmt.Println("  " + step)
		}
		return session.Err()
	}

	fmt.Println("\n=== PROPOSED ORDERS ===")
	for i, p := range session.Proposals() {
		fmt.Printf("%2d. %s %-7s %s\n", i+1, p.Date, p.Period, p.DishName)
		if p.Reason != "" {
			fmt.Printf("    %s\n", p.Reason)
		}
	}
	if discarded := session.Discarded(); len(discarded) > 0 {
		fmt.Printf("\n%d suggestion(s) discarded during validation.\n", len(discarded))
	}

	if !autoConfirm {
		fmt.Print("\nPlace these orders? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			if err := session.Cancel(); err != nil {
				return err
			}
			fmt.Println("Discarded.")
			return nil
		}
	}

	results, err := session.Execute(ctx)
	if err != nil {
		return err
	}

	ok, failed := session.Summary()
	fmt.Printf("\n=== RESULT: %d ordered, %d failed ===\n", ok, failed)
	for _, r := range results {
		if r.OK {
			fmt.Printf("  ok   %s %s\n", r.Date, r.DishName)
		} else {
			fmt.Printf("  FAIL %s %s: %s\n", r.Date, r.DishName, r.Err)
		}
	}
	return nil
}

// ShowCalendar prints this week's slots.
func (a *App) ShowCalendar(ctx context.Context) error {
	from, to := planner.WeekRange(time.Now())
	slots, err := a.client.FetchCalendar(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to fetch calendar: %w", err)
	}

	fmt.Printf("Week %s to %s\n", from.Format("2006-01-02"), to.Format("2006-01-02"))
	for _, s := range slots {
		line := fmt.Sprintf("%s  %-9s  %-11s", s.Date, s.Period, s.Status)
		if s.OrderID != "" {
			line += "  order " + s.OrderID
		}
		if !s.Editable(time.Now()) {
			line += "  (locked)"
		}
		fmt.Println(line)
	}
	return nil
}

// ShowHistory prints the trailing 28 days of orders.
func (a *App) ShowHistory(ctx context.Context) error {
	to := time.Now()
	orders, err := a.client.FetchOrderHistory(ctx, to.AddDate(0, 0, -28), to)
	if err != nil {
		return fmt.Errorf("failed to fetch history: %w", err)
	}
	for _, o := range orders {
		fmt.Printf("%s  %-9s  %s\n", o.Date, o.Period, o.DishName)
	}
	return nil
}

// findSlot locates this week's slot for a date and period.
func (a *App) findSlot(ctx context.Context, date string, period catering.MealPeriod) (catering.Slot, error) {
	from, to := planner.WeekRange(time.Now())
	slots, err := a.client.FetchCalendar(ctx, from, to)
	if err != nil {
		return catering.Slot{}, fmt.Errorf("failed to fetch calendar: %w", err)
	}
	for _, s := range slots {
		if s.Date == date && s.Period == period {
			return s, nil
		}
	}
	return catering.Slot{}, fmt.Errorf("no slot for %s %s", date, period)
}

// OrderDish places or replaces a single order on one slot (manual path).
// Replacing is delete-then-place; a half-failed replace leaves the slot empty
// and is reported, not hidden.
func (a *App) OrderDish(ctx context.Context, date string, period catering.MealPeriod, dishID, addressID string) error {
	slot, err := a.findSlot(ctx, date, period)
	if err != nil {
		return err
	}

	var orderID string
	if slot.OrderID != "" {
		fmt.Println("Slot already has an order; replacing. If placement fails after the old order is removed, the slot will be left empty.")
		orderID, err = a.editor.Replace(ctx, slot, dishID, addressID)
	} else {
		orderID, err = a.editor.Place(ctx, slot, dishID, addressID)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Ordered: %s\n", orderID)
	return nil
}

// CancelOrder deletes the order on one slot (manual path).
func (a *App) CancelOrder(ctx context.Context, date string, period catering.MealPeriod) error {
	slot, err := a.findSlot(ctx, date, period)
	if err != nil {
		return err
	}
	if err := a.editor.Delete(ctx, slot); err != nil {
		return err
	}
	fmt.Println("Order deleted.")
	return nil
}

// ShowMenu prints the menu for one slot, so a dish id can be picked for the
// manual path. Breakfast channels expose restaurants instead of dishes.
func (a *App) ShowMenu(ctx context.Context, date string, period catering.MealPeriod) error {
	slot, err := a.findSlot(ctx, date, period)
	if err != nil {
		return err
	}

	fetch := a.client.FetchDishes
	if period == catering.PeriodBreakfast {
		fetch = a.client.FetchRestaurants
	}
	menu, err := fetch(ctx, slot.Channel, catering.TargetTime(period))
	if err != nil {
		return fmt.Errorf("failed to fetch menu: %w", err)
	}

	for _, d := range menu {
		fmt.Printf("%-8s  %-40s  %d.%02d  %s\n", d.ID, d.Name, d.Price/100, d.Price%100, d.RestaurantName)
	}
	return nil
}

// SetWeekends toggles weekend inclusion in planning.
func (a *App) SetWeekends(ctx context.Context, on bool) error {
	userPrefs, err := a.prefsRepo.Get(ctx, cliUser)
	if err != nil {
		return err
	}
	userPrefs.IncludeWeekends = on
	return a.prefsRepo.Save(ctx, cliUser, userPrefs)
}
