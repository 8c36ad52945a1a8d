package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"meal-order-assistant/internal/catering"
	"meal-order-assistant/internal/config"
	"meal-order-assistant/internal/llm"
	"meal-order-assistant/internal/metrics"
	"meal-order-assistant/internal/planner"
	"meal-order-assistant/internal/prefs"
)

// Bot is the review/edit surface for weekly planning. Each chat holds at most
// one in-memory planning session; sessions are discarded on cancel,
// completion or error restart.
type Bot struct {
	api          *tgbotapi.BotAPI
	client       catering.Client
	gen          llm.TextGenerator // nil while the AI provider is unconfigured
	prefsRepo    *prefs.Repository
	metricsStore *metrics.Store
	cfg          *config.Config
	log          *zap.Logger

	mu       sync.Mutex
	sessions map[int64]*planner.Session
}

// NewBot initializes the Telegram bot and sets the webhook.
func NewBot(
	cfg *config.Config,
	client catering.Client,
	gen llm.TextGenerator,
	prefsRepo *prefs.Repository,
	metricsStore *metrics.Store,
	logger *zap.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	logger.Info("authorized on telegram", zap.String("account", api.Self.UserName))

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	logger.Info("webhook set", zap.String("response", resp.Description))

	return &Bot{
		api:          api,
		client:       client,
		gen:          gen,
		prefsRepo:    prefsRepo,
		metricsStore: metricsStore,
		cfg:          cfg,
		log:          logger,
		sessions:     make(map[int64]*planner.Session),
	}, nil
}

// RegisterHandlers registers the webhook handler with the default HTTP mux.
func (b *Bot) RegisterHandlers() {
	http.HandleFunc("/webhook", b.handleWebhook)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		b.log.Warn("error parsing update", zap.Error(err))
		return
	}

	if update.CallbackQuery != nil {
		if b.isAllowed(update.CallbackQuery.From.ID) {
			go b.handleCallbackQuery(update.CallbackQuery)
		}
		return
	}

	if update.Message == nil {
		return
	}
	if !b.isAllowed(update.Message.From.ID) {
		b.log.Warn("unauthorized access attempt",
			zap.Int64("user_id", update.Message.From.ID),
			zap.String("username", update.Message.From.UserName))
		return
	}

	go b.processMessage(update.Message)
}

// callbackChatID extracts the chat a callback belongs to, if its message is
// still attached.
func callbackChatID(query *tgbotapi.CallbackQuery) (int64, bool) {
	if query.Message == nil || query.Message.Chat == nil {
		return 0, false
	}
	return query.Message.Chat.ID, true
}

func (b *Bot) isAllowed(userID int64) bool {
	for _, id := range b.cfg.TelegramAllowedUserIDs {
		if userID == id {
			return true
		}
	}
	return false
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	cmd := msg.Text
	switch {
	case strings.HasPrefix(cmd, "/plan"):
		b.handlePlan(msg)
	case strings.HasPrefix(cmd, "/calendar"):
		b.handleCalendar(msg)
	case strings.HasPrefix(cmd, "/history"):
		b.handleHistory(msg)
	case strings.HasPrefix(cmd, "/weekends"):
		b.handleWeekends(msg)
	case strings.HasPrefix(cmd, "/usage"):
		b.handleUsage(msg)
	default:
		b.send(msg.Chat.ID, "Commands:\n/plan - plan and order the week\n/calendar - show this week\n/history - recent orders\n/weekends on|off - include weekends in planning\n/usage - AI usage stats")
	}
}

func (b *Bot) handlePlan(msg *tgbotapi.Message) {
	ctx := context.Background()
	chatID := msg.Chat.ID

	statusMsg := b.send(chatID, "🧑‍🍳 *Planning your week...*")

	userPrefs, err := b.prefsRepo.Get(ctx, strconv.FormatInt(msg.From.ID, 10))
	if err != nil {
		b.log.Warn("failed to load preferences, using defaults", zap.Error(err))
	}

	session := planner.NewSession(b.client, b.gen, userPrefs, b.log)
	b.mu.Lock()
	b.sessions[chatID] = session
	b.mu.Unlock()

	state := session.Start(ctx)
	b.recordUsage(ctx, session)
	b.showSessionState(chatID, statusMsg.MessageID, session, state)
}

func (b *Bot) showSessionState(chatID int64, messageID int, session *planner.Session, state planner.State) {
	switch state {
	case planner.StateConfigNeeded:
		b.edit(chatID, messageID, "⚙️ *AI provider is not configured.*\nSet GEMINI_API_KEY, or CUSTOM_AI_ENDPOINT and CUSTOM_AI_API_KEY, then run /plan again.", nil)
		b.dropSession(chatID)
	case planner.StateFullyPlanned:
		b.edit(chatID, messageID, "✅ *Nothing left to plan* - every slot this week is already handled.", nil)
		b.dropSession(chatID)
	case planner.StateFailed:
		text := fmt.Sprintf("❌ *Planning failed:* %v\n\n%s", session.Err(), stepLog(session))
		b.edit(chatID, messageID, text, nil)
		b.dropSession(chatID)
	case planner.StateReview:
		text, keyboard := renderReview(session)
		b.edit(chatID, messageID, text, &keyboard)
	}
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	ctx := context.Background()

	// Callbacks can arrive without their originating message (deleted or
	// inaccessible); there is nothing to act on then.
	chatID, ok := callbackChatID(query)
	if !ok {
		b.api.Request(tgbotapi.NewCallback(query.ID, "Message no longer available"))
		return
	}

	b.mu.Lock()
	session := b.sessions[chatID]
	b.mu.Unlock()

	if session == nil {
		b.api.Request(tgbotapi.NewCallback(query.ID, "No active planning session"))
		return
	}

	action, arg, _ := strings.Cut(query.Data, "|")
	b.api.Request(tgbotapi.NewCallback(query.ID, ""))

	switch action {
	case "rm":
		i, err := strconv.Atoi(arg)
		if err == nil {
			if err := session.RemoveProposal(i); err != nil {
				b.log.Warn("remove proposal rejected", zap.Error(err))
			}
		}
		text, keyboard := renderReview(session)
		b.edit(chatID, query.Message.MessageID, text, &keyboard)

	case "regen":
		b.edit(chatID, query.Message.MessageID, "🧑‍🍳 *Regenerating plan...*", nil)
		state, err := session.Regenerate(ctx)
		if err != nil {
			b.edit(chatID, query.Message.MessageID, "⏳ Batch is executing; wait for it to finish.", nil)
			return
		}
		b.recordUsage(ctx, session)
		b.showSessionState(chatID, query.Message.MessageID, session, state)

	case "exec":
		// Cancel is unavailable from here on: the keyboard is removed before
		// submission starts and the batch always runs to completion.
		b.edit(chatID, query.Message.MessageID, "📦 *Placing orders...*", nil)
		results, err := session.Execute(ctx)
		if err != nil {
			b.edit(chatID, query.Message.MessageID, fmt.Sprintf("❌ %v", err), nil)
			return
		}
		ok, failed := session.Summary()
		b.edit(chatID, query.Message.MessageID, renderResults(results, ok, failed), nil)
		b.dropSession(chatID)

	case "cancel":
		if err := session.Cancel(); err != nil {
			b.edit(chatID, query.Message.MessageID, "⏳ Batch is executing; it cannot be cancelled.", nil)
			return
		}
		b.edit(chatID, query.Message.MessageID, "🗑 Planning session discarded.", nil)
		b.dropSession(chatID)
	}
}

func (b *Bot) handleCalendar(msg *tgbotapi.Message) {
	from, to := planner.WeekRange(time.Now())
	slots, err := b.client.FetchCalendar(context.Background(), from, to)
	if err != nil {
		b.send(msg.Chat.ID, fmt.Sprintf("❌ Failed to fetch calendar: %v", err))
		return
	}

	var sb strings.Builder
	sb.WriteString("🗓 *This week*\n")
	for _, s := range slots {
		sb.WriteString(fmt.Sprintf("%s %s %-9s %s\n", statusIcon(s.Status), s.Date, s.Period, s.OrderID))
	}
	b.send(msg.Chat.ID, sb.String())
}

func (b *Bot) handleHistory(msg *tgbotapi.Message) {
	to := time.Now()
	from := to.AddDate(0, 0, -28)
	orders, err := b.client.FetchOrderHistory(context.Background(), from, to)
	if err != nil {
		b.send(msg.Chat.ID, fmt.Sprintf("❌ Failed to fetch history: %v", err))
		return
	}
	if len(orders) == 0 {
		b.send(msg.Chat.ID, "No orders in the last 4 weeks.")
		return
	}

	var sb strings.Builder
	sb.WriteString("🍽 *Last 4 weeks*\n")
	for _, o := range orders {
		sb.WriteString(fmt.Sprintf("%s %s: %s\n", o.Date, o.Period, o.DishName))
	}
	b.send(msg.Chat.ID, sb.String())
}

func (b *Bot) handleWeekends(msg *tgbotapi.Message) {
	ctx := context.Background()
	userID := strconv.FormatInt(msg.From.ID, 10)
	arg := strings.TrimSpace(strings.TrimPrefix(msg.Text, "/weekends"))

	userPrefs, err := b.prefsRepo.Get(ctx, userID)
	if err != nil {
		b.send(msg.Chat.ID, fmt.Sprintf("❌ Failed to load preferences: %v", err))
		return
	}

	switch arg {
	case "on":
		userPrefs.IncludeWeekends = true
	case "off":
		userPrefs.IncludeWeekends = false
	default:
		b.send(msg.Chat.ID, fmt.Sprintf("Weekends are currently *%s*. Use /weekends on or /weekends off.", onOff(userPrefs.IncludeWeekends)))
		return
	}

	if err := b.prefsRepo.Save(ctx, userID, userPrefs); err != nil {
		b.send(msg.Chat.ID, fmt.Sprintf("❌ Failed to save preferences: %v", err))
		return
	}
	b.send(msg.Chat.ID, fmt.Sprintf("Weekends are now *%s*.", onOff(userPrefs.IncludeWeekends)))
}

func (b *Bot) handleUsage(msg *tgbotapi.Message) {
	usage, err := b.metricsStore.GetDailyUsage(context.Background(), 7)
	if err != nil {
		b.send(msg.Chat.ID, fmt.Sprintf("❌ Failed to load usage: %v", err))
		return
	}
	if len(usage) == 0 {
		b.send(msg.Chat.ID, "No AI usage in the last 7 days.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📊 *AI usage (7 days)*\n")
	for _, u := range usage {
		sb.WriteString(fmt.Sprintf("%s: %d calls, %d prompt / %d completion tokens\n",
			u.Date, u.TotalExecution, u.TotalPrompt, u.TotalCompletion))
	}
	b.send(msg.Chat.ID, sb.String())
}

func (b *Bot) recordUsage(ctx context.Context, session *planner.Session) {
	if err := b.metricsStore.RecordMeta(ctx, session.LastMeta()); err != nil {
		b.log.Warn("failed to record usage metrics", zap.Error(err))
	}
}

func (b *Bot) dropSession(chatID int64) {
	b.mu.Lock()
	delete(b.sessions, chatID)
	b.mu.Unlock()
}

func (b *Bot) send(chatID int64, text string) tgbotapi.Message {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	sent, err := b.api.Send(msg)
	if err != nil {
		b.log.Warn("failed to send message", zap.Error(err))
	}
	return sent
}

func (b *Bot) edit(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = "Markdown"
	edit.ReplyMarkup = keyboard
	if _, err := b.api.Send(edit); err != nil {
		b.log.Warn("failed to edit message", zap.Error(err))
	}
}
