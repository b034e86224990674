package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"universes/internal/display"
	"universes/internal/model"
	"universes/internal/service"
	"universes/internal/status"
	"universes/internal/timeunit"
)

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /tasks: open tasks grouped by primary universe\n" +
	"• /universes: universes and their status\n" +
	"• /complete &lt;id&gt;: mark a task completed\n" +
	"• /skip &lt;id&gt;: skip the current instance of a recurring task\n" +
	"• /log &lt;id&gt; &lt;minutes&gt; [notes]: log time on a task\n" +
	"• /digest: send today's digest now\n" +
	"• /help: this message"

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		b.logger.Info("command",
			zap.Int64("user", msg.From.ID),
			zap.String("command", msg.Command()),
			zap.String("args", msg.CommandArguments()),
		)
		b.clearConfirmation(msg.From.ID)
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	switch strings.TrimSpace(msg.Text) {
	case menuLabelTasks:
		return b.sendTaskList(ctx, msg.Chat.ID)
	case menuLabelDigest:
		return b.handleDigest(ctx, msg)
	case menuLabelHelp:
		return b.sendText(msg.Chat.ID, helpText)
	}
	return b.sendText(msg.Chat.ID, "I did not understand that. Try /tasks or /help.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.sendText(msg.Chat.ID, helpText)
	case "tasks":
		return b.sendTaskList(ctx, msg.Chat.ID)
	case "universes":
		return b.handleUniverses(ctx, msg)
	case "complete":
		id, ok := parseArgID(msg.CommandArguments())
		if !ok {
			return b.sendText(msg.Chat.ID, "Give a task number, for example /complete 3.")
		}
		return b.askConfirmation(ctx, msg.Chat.ID, msg.From.ID, id, actionComplete)
	case "skip":
		id, ok := parseArgID(msg.CommandArguments())
		if !ok {
			return b.sendText(msg.Chat.ID, "Give a task number, for example /skip 3.")
		}
		return b.skipTask(ctx, msg.Chat.ID, id)
	case "log":
		return b.handleLog(ctx, msg)
	case "digest":
		return b.handleDigest(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.subscribers.UpsertFromTelegram(ctx, msg.From.ID, msg.From.FirstName, msg.From.LastName, msg.From.UserName); err != nil {
		return err
	}
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>You are subscribed to the daily digest.</b>\n\n%s", html.EscapeString(name), helpText)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleDigest(ctx context.Context, msg *tgbotapi.Message) error {
	text, err := b.reminders.DailySummary(ctx, b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Could not build the digest.")
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleUniverses(ctx context.Context, msg *tgbotapi.Message) error {
	universes, err := b.universes.List(ctx)
	if err != nil {
		return err
	}
	if len(universes) == 0 {
		return b.sendText(msg.Chat.ID, "There are no universes yet.")
	}
	var sb strings.Builder
	sb.WriteString("🪐 <b>Universes</b>\n")
	for _, u := range universes {
		fmt.Fprintf(&sb, "• <b>%s</b> · %s\n", html.EscapeString(u.Name), display.Enum(string(u.Status)))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(sb.String()))
}

// handleLog parses "/log <id> <minutes> [notes]".
func (b *Bot) handleLog(ctx context.Context, msg *tgbotapi.Message) error {
	id, in, ok := parseLogArgs(msg.CommandArguments())
	if !ok {
		return b.sendText(msg.Chat.ID, "Usage: /log &lt;id&gt; &lt;minutes&gt; [notes]")
	}
	if _, err := b.tasks.Log(ctx, id, in); err != nil {
		return b.sendText(msg.Chat.ID, b.failureText(err, "Could not log time."))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("📝 Logged on task #%d.", id))
}

func parseLogArgs(args string) (uint, service.LogInput, bool) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return 0, service.LogInput{}, false
	}
	id, ok := parseArgID(fields[0])
	if !ok {
		return 0, service.LogInput{}, false
	}
	minutes, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, service.LogInput{}, false
	}
	return id, service.LogInput{Minutes: &minutes, Notes: strings.Join(fields[2:], " ")}, true
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	b.ack(cb)
	chatID := cb.Message.Chat.ID
	data := cb.Data
	b.logger.Info("callback", zap.Int64("user", cb.From.ID), zap.String("data", data))

	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		if id, ok := parseArgID(strings.TrimPrefix(data, cbCompletePrefix)); ok {
			return b.askConfirmation(ctx, chatID, cb.From.ID, id, actionComplete)
		}
	case strings.HasPrefix(data, cbDeletePrefix):
		if id, ok := parseArgID(strings.TrimPrefix(data, cbDeletePrefix)); ok {
			return b.askConfirmation(ctx, chatID, cb.From.ID, id, actionDelete)
		}
	case strings.HasPrefix(data, cbSkipPrefix):
		if id, ok := parseArgID(strings.TrimPrefix(data, cbSkipPrefix)); ok {
			return b.skipTask(ctx, chatID, id)
		}
	}
	return nil
}

func (b *Bot) askConfirmation(ctx context.Context, chatID, userID int64, taskID uint, action confirmationAction) error {
	detail, err := b.tasks.Get(ctx, taskID)
	if err != nil {
		return b.sendText(chatID, b.failureText(err, "Could not load the task."))
	}
	task := detail.Task
	var text string
	switch action {
	case actionComplete:
		if task.CompletedAt != nil {
			return b.sendText(chatID, "That task is already completed.")
		}
		text = fmt.Sprintf("Mark “%s” (#%d) as completed?", html.EscapeString(task.Name), task.ID)
	case actionDelete:
		text = fmt.Sprintf("Delete “%s” (#%d)?", html.EscapeString(task.Name), task.ID)
	}
	b.setConfirmation(userID, confirmationRequest{taskID: task.ID, action: action})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	switch strings.TrimSpace(msg.Text) {
	case btnConfirm:
		b.clearConfirmation(msg.From.ID)
		if req.action == actionDelete {
			return b.deleteTask(ctx, msg.Chat.ID, req.taskID)
		}
		return b.completeTask(ctx, msg.Chat.ID, req.taskID)
	case btnCancel:
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Cancelled.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Press Confirm or Cancel.", confirmKeyboard())
	}
}

func (b *Bot) completeTask(ctx context.Context, chatID int64, taskID uint) error {
	task, err := b.tasks.Complete(ctx, taskID, b.now())
	if err != nil {
		return b.sendText(chatID, b.failureText(err, "Could not complete the task."))
	}
	b.logger.Info("task completed", zap.Uint("task", task.ID))
	if err := b.sendText(chatID, fmt.Sprintf("✅ “%s” completed.", html.EscapeString(task.Name))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID)
}

func (b *Bot) deleteTask(ctx context.Context, chatID int64, taskID uint) error {
	if err := b.tasks.Delete(ctx, taskID); err != nil {
		return b.sendText(chatID, b.failureText(err, "Could not delete the task."))
	}
	b.logger.Info("task deleted", zap.Uint("task", taskID))
	if err := b.sendText(chatID, fmt.Sprintf("🗑 Task #%d deleted.", taskID)); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID)
}

func (b *Bot) skipTask(ctx context.Context, chatID int64, taskID uint) error {
	task, err := b.tasks.Skip(ctx, taskID, b.now())
	if err != nil {
		return b.sendText(chatID, b.failureText(err, "Could not skip the task."))
	}
	b.logger.Info("task skipped", zap.Uint("task", task.ID))
	return b.sendText(chatID, fmt.Sprintf("⏭ “%s” skipped.", html.EscapeString(task.Name)))
}

// failureText turns a service error into a reply. Unexpected errors are
// logged and replaced with fallback.
func (b *Bot) failureText(err error, fallback string) string {
	if errors.Is(err, service.ErrNotFound) {
		return "Task not found."
	}
	if verr, ok := service.IsValidation(err); ok {
		var msgs []string
		for _, field := range sortedKeys(verr.Fields) {
			msgs = append(msgs, verr.Fields[field]...)
		}
		return html.EscapeString(strings.Join(msgs, "\n"))
	}
	b.logger.Error("service call failed", zap.Error(err))
	return fallback
}

type universeGroup struct {
	name  string
	tasks []service.TaskDetail
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64) error {
	details, err := b.tasks.List(ctx, nil)
	if err != nil {
		return err
	}
	universes, err := b.universes.List(ctx)
	if err != nil {
		return err
	}
	names := make(map[uint]string, len(universes))
	for _, u := range universes {
		names[u.ID] = u.Name
	}

	now := b.now()
	groups := groupByPrimaryUniverse(details, names)
	if len(groups) == 0 {
		return b.sendText(chatID, "No open tasks. Nice.")
	}

	var sb strings.Builder
	sb.WriteString("📋 <b>Open tasks</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, g := range groups {
		fmt.Fprintf(&sb, "<b>%s</b>\n", html.EscapeString(g.name))
		for _, d := range g.tasks {
			sb.WriteString(formatTask(d.Task, now))
			row := []tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", d.Task.ID, shortTitle(d.Task.Name, 20)), fmt.Sprintf("%s%d", cbCompletePrefix, d.Task.ID)),
			}
			if status.SkipVisible(d.Task.RecurringTaskID != nil, false, false) {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData("⏭ Skip", fmt.Sprintf("%s%d", cbSkipPrefix, d.Task.ID)))
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbDeletePrefix, d.Task.ID)))
			buttons = append(buttons, row)
		}
		sb.WriteByte('\n')
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(sb.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	_, err = b.out.Send(msg)
	return err
}

// groupByPrimaryUniverse drops completed and skipped tasks and groups the
// rest by primary universe name. Tasks without a universe come last.
func groupByPrimaryUniverse(details []service.TaskDetail, names map[uint]string) []universeGroup {
	index := make(map[string]int)
	var groups []universeGroup
	for _, d := range details {
		if d.Task.CompletedAt != nil || d.Task.SkippedAt != nil {
			continue
		}
		name := noUniverse
		for _, m := range d.Memberships {
			if m.Primary() {
				name = names[m.UniverseID]
			}
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, universeGroup{name: name})
		}
		groups[i].tasks = append(groups[i].tasks, d)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].name == noUniverse {
			return false
		}
		if groups[j].name == noUniverse {
			return true
		}
		return strings.ToLower(groups[i].name) < strings.ToLower(groups[j].name)
	})
	for _, g := range groups {
		sort.SliceStable(g.tasks, func(i, j int) bool {
			a, b := g.tasks[i].Task, g.tasks[j].Task
			switch {
			case a.DeadlineAt != nil && b.DeadlineAt != nil && !a.DeadlineAt.Equal(*b.DeadlineAt):
				return a.DeadlineAt.Before(*b.DeadlineAt)
			case a.DeadlineAt != nil && b.DeadlineAt == nil:
				return true
			case a.DeadlineAt == nil && b.DeadlineAt != nil:
				return false
			}
			return a.ID < b.ID
		})
	}
	return groups
}

func formatTask(task model.Task, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s <b>#%d</b> %s\n", taskIcon(task, now), task.ID, html.EscapeString(task.Name))
	if task.DeadlineAt != nil {
		fmt.Fprintf(&sb, "   ⏰ %s\n", display.Deadline(task.DeadlineAt))
	}
	if task.EstimatedTime != nil {
		fmt.Fprintf(&sb, "   ⌛ %s\n", timeunit.Label(task.EstimatedTime, timeunit.Preferred(*task.EstimatedTime)))
	}
	if task.Description != "" {
		fmt.Fprintf(&sb, "   📝 %s\n", html.EscapeString(task.Description))
	}
	return sb.String()
}

func taskIcon(task model.Task, now time.Time) string {
	switch {
	case service.DisplayStatus(task, now) == status.Late:
		return "⚠️"
	case task.DeadlineAt != nil && task.DeadlineAt.Sub(now) <= 48*time.Hour:
		return "⏳"
	case task.RecurringTaskID != nil:
		return "♻️"
	}
	return "🟢"
}

func shortTitle(title string, maxLen int) string {
	runes := []rune(strings.TrimSpace(title))
	if len(runes) <= maxLen {
		return string(runes)
	}
	return string(runes[:maxLen-1]) + "…"
}

func parseArgID(raw string) (uint, bool) {
	value, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil || value == 0 {
		return 0, false
	}
	return uint(value), true
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
