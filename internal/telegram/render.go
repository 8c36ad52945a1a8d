package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"meal-order-assistant/internal/catering"
	"meal-order-assistant/internal/planner"
)

// renderReview builds the proposal list with per-item remove buttons plus the
// confirm/regenerate/cancel row. Confirmation stays available only while the
// list is non-empty.
func renderReview(session *planner.Session) (string, tgbotapi.InlineKeyboardMarkup) {
	proposals := session.Proposals()

	var sb strings.Builder
	sb.WriteString("📋 *Proposed orders*\n\n")
	for i, p := range proposals {
		sb.WriteString(fmt.Sprintf("%d. %s %s: *%s*", i+1, p.Date, p.Period, p.DishName))
		if p.Price > 0 {
			sb.WriteString(fmt.Sprintf(" (%d.%02d)", p.Price/100, p.Price%100))
		}
		sb.WriteString("\n")
		if p.Reason != "" {
			sb.WriteString(fmt.Sprintf("   _%s_\n", p.Reason))
		}
	}
	if len(proposals) == 0 {
		sb.WriteString("_All proposals removed. Regenerate or cancel._\n")
	}
	if discarded := session.Discarded(); len(discarded) > 0 {
		sb.WriteString(fmt.Sprintf("\n⚠️ %d suggestion(s) were discarded during validation.\n", len(discarded)))
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var removeRow []tgbotapi.InlineKeyboardButton
	for i := range proposals {
		removeRow = append(removeRow, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("✖ %d", i+1), fmt.Sprintf("rm|%d", i)))
		if len(removeRow) == 5 {
			rows = append(rows, removeRow)
			removeRow = nil
		}
	}
	if len(removeRow) > 0 {
		rows = append(rows, removeRow)
	}

	actionRow := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("🔄 Regenerate", "regen"),
		tgbotapi.NewInlineKeyboardButtonData("🗑 Cancel", "cancel"),
	}
	if len(proposals) > 0 {
		actionRow = append([]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("✅ Order all", "exec"),
		}, actionRow...)
	}
	rows = append(rows, actionRow)

	return sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// renderResults builds the terminal summary distinguishing succeeded and
// failed items by name and reason.
func renderResults(results []planner.ExecutionResult, ok, failed int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🏁 *Done: %d ordered, %d failed*\n\n", ok, failed))
	for _, r := range results {
		if r.OK {
			sb.WriteString(fmt.Sprintf("✅ %s: %s\n", r.Date, r.DishName))
		} else {
			sb.WriteString(fmt.Sprintf("❌ %s: %s - %s\n", r.Date, r.DishName, r.Err))
		}
	}
	if failed > 0 {
		sb.WriteString("\nRun /plan again to retry the failed days.")
	}
	return sb.String()
}

func stepLog(session *planner.Session) string {
	steps := session.Steps()
	if len(steps) == 0 {
		return ""
	}
	return "```\n" + strings.Join(steps, "\n") + "\n```"
}

func statusIcon(status catering.SlotStatus) string {
	switch status {
	case catering.StatusOpen:
		return "🟢"
	case catering.StatusOrdered:
		return "✅"
	case catering.StatusClosed:
		return "🔒"
	default:
		return "⚪"
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
