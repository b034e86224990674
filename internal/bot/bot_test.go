package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"universes/internal/repository"
	"universes/internal/service"
)

type fakeSender struct {
	mu       sync.Mutex
	messages []tgbotapi.MessageConfig
	requests int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.messages = append(f.messages, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		t.Fatalf("no message sent")
	}
	return f.messages[len(f.messages)-1]
}

var testNow = time.Date(2026, 4, 15, 9, 0, 0, 0, time.UTC)

type fixture struct {
	bot       *Bot
	out       *fakeSender
	tasks     *service.TaskService
	universes *service.UniverseService
	recurring *service.RecurringTaskService
	subs      *repository.SubscriberRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:bot_%s?mode=memory&cache=shared", name), nil)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	taskRepo := repository.NewTaskRepository(db)
	universeRepo := repository.NewUniverseRepository(db)
	recurringRepo := repository.NewRecurringTaskRepository(db)
	memberRepo := repository.NewMembershipRepository(db)
	logs := service.NewLogService(repository.NewLogRepository(db))

	f := fixture{
		out:       &fakeSender{},
		tasks:     service.NewTaskService(taskRepo, universeRepo, recurringRepo, memberRepo, logs),
		universes: service.NewUniverseService(universeRepo, logs),
		recurring: service.NewRecurringTaskService(recurringRepo),
		subs:      repository.NewSubscriberRepository(db),
	}
	f.bot = newBot(f.out, Deps{
		Tasks:       f.tasks,
		Universes:   f.universes,
		Reminders:   service.NewReminderService(taskRepo, universeRepo, memberRepo),
		Subscribers: f.subs,
		Now:         func() time.Time { return testNow },
	})
	return f
}

func (f fixture) task(t *testing.T, name string, universes ...uint) uint {
	t.Helper()
	d, err := f.tasks.Create(context.Background(), service.TaskCreate{Name: name, UniverseIDs: universes})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return d.Task.ID
}

func (f fixture) universe(t *testing.T, name string) uint {
	t.Helper()
	u, err := f.universes.Create(context.Background(), service.UniverseInput{Name: name})
	if err != nil {
		t.Fatalf("create universe: %v", err)
	}
	return u.ID
}

func command(text string) *tgbotapi.Message {
	cmd := strings.Fields(text)[0]
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 42, Type: "private"},
		From:     &tgbotapi.User{ID: 42, FirstName: "Sam"},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}
}

func reply(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: 42, Type: "private"},
		From: &tgbotapi.User{ID: 42},
	}
}

func callback(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: 42},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42, Type: "private"}},
		Data:    data,
	}
}

func TestStartSubscribes(t *testing.T) {
	f := newFixture(t)
	if err := f.bot.handleMessage(context.Background(), command("/start")); err != nil {
		t.Fatalf("start: %v", err)
	}
	subs, err := f.subs.ListAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].TelegramID != 42 {
		t.Fatalf("subscribers = %+v", subs)
	}
	if !strings.Contains(f.out.last(t).Text, "Hi, Sam") {
		t.Fatalf("welcome = %q", f.out.last(t).Text)
	}
}

func TestTaskListGroupsByPrimaryUniverse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	work := f.universe(t, "Work")
	home := f.universe(t, "Home")
	f.task(t, "Fix sink", home)
	f.task(t, "Write report", work)
	f.task(t, "Loose end")
	done := f.task(t, "Old thing", work)
	if _, err := f.tasks.Complete(ctx, done, testNow); err != nil {
		t.Fatal(err)
	}
	rt, err := f.recurring.Create(ctx, service.RecurringTaskInput{Name: "Weekly review"})
	if err != nil {
		t.Fatal(err)
	}
	recurringID := f.task(t, "Review week", work)
	if _, err := f.tasks.Update(ctx, recurringID, service.TaskUpdate{
		Name:            "Review week",
		UniverseIDs:     []uint{work},
		RecurringTaskID: service.Set(rt.ID),
	}); err != nil {
		t.Fatal(err)
	}

	if err := f.bot.handleMessage(ctx, command("/tasks")); err != nil {
		t.Fatalf("tasks: %v", err)
	}
	msg := f.out.last(t)
	hi, wi, ni := strings.Index(msg.Text, "<b>Home</b>"), strings.Index(msg.Text, "<b>Work</b>"), strings.Index(msg.Text, "<b>No universe</b>")
	if hi < 0 || wi < 0 || ni < 0 || !(hi < wi && wi < ni) {
		t.Fatalf("groups out of order:\n%s", msg.Text)
	}
	if strings.Contains(msg.Text, "Old thing") {
		t.Fatalf("completed task listed")
	}

	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("reply markup = %T", msg.ReplyMarkup)
	}
	var skips int
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil && strings.HasPrefix(*btn.CallbackData, cbSkipPrefix) {
				skips++
				if *btn.CallbackData != fmt.Sprintf("%s%d", cbSkipPrefix, recurringID) {
					t.Fatalf("skip offered for %s", *btn.CallbackData)
				}
			}
		}
	}
	if skips != 1 {
		t.Fatalf("skip buttons = %d, want 1", skips)
	}
}

func TestCompleteNeedsConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.task(t, "Write report")

	if err := f.bot.handleCallback(ctx, callback(fmt.Sprintf("%s%d", cbCompletePrefix, id))); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if f.out.requests != 1 {
		t.Fatalf("callback not acknowledged")
	}
	if !strings.Contains(f.out.last(t).Text, "Mark “Write report”") {
		t.Fatalf("prompt = %q", f.out.last(t).Text)
	}

	if err := f.bot.handleMessage(ctx, reply("maybe")); err != nil {
		t.Fatal(err)
	}
	if d, _ := f.tasks.Get(ctx, id); d.Task.CompletedAt != nil {
		t.Fatalf("completed without confirmation")
	}

	if err := f.bot.handleMessage(ctx, reply(btnConfirm)); err != nil {
		t.Fatal(err)
	}
	d, err := f.tasks.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if d.Task.CompletedAt == nil || !d.Task.CompletedAt.Equal(testNow) {
		t.Fatalf("completed_at = %v", d.Task.CompletedAt)
	}
	if _, pending := f.bot.getConfirmation(42); pending {
		t.Fatalf("confirmation not cleared")
	}
}

func TestDeleteCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.task(t, "Keep me")

	_ = f.bot.handleCallback(ctx, callback(fmt.Sprintf("%s%d", cbDeletePrefix, id)))
	if err := f.bot.handleMessage(ctx, reply(btnCancel)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tasks.Get(ctx, id); err != nil {
		t.Fatalf("task gone after cancel: %v", err)
	}

	_ = f.bot.handleCallback(ctx, callback(fmt.Sprintf("%s%d", cbDeletePrefix, id)))
	_ = f.bot.handleMessage(ctx, reply(btnConfirm))
	if _, err := f.tasks.Get(ctx, id); err == nil {
		t.Fatalf("task still there after confirmed delete")
	}
}

func TestLogCommand(t *testing.T) {
	tests := []struct {
		args    string
		ok      bool
		minutes int
		notes   string
	}{
		{"3 30 drafted intro", true, 30, "drafted intro"},
		{"#3 15", true, 15, ""},
		{"3", false, 0, ""},
		{"x 30", false, 0, ""},
		{"3 half", false, 0, ""},
	}
	for _, tt := range tests {
		id, in, ok := parseLogArgs(tt.args)
		if ok != tt.ok {
			t.Fatalf("parseLogArgs(%q) ok = %v", tt.args, ok)
		}
		if !ok {
			continue
		}
		if id != 3 || *in.Minutes != tt.minutes || in.Notes != tt.notes {
			t.Fatalf("parseLogArgs(%q) = %d %+v", tt.args, id, in)
		}
	}

	f := newFixture(t)
	id := f.task(t, "Write report")
	if err := f.bot.handleMessage(context.Background(), command(fmt.Sprintf("/log %d -5", id))); err != nil {
		t.Fatal(err)
	}
	if text := f.out.last(t).Text; strings.Contains(text, "Logged") {
		t.Fatalf("negative minutes accepted: %q", text)
	}
}

func TestUnknownTaskReply(t *testing.T) {
	f := newFixture(t)
	if err := f.bot.handleMessage(context.Background(), command("/complete 999")); err != nil {
		t.Fatal(err)
	}
	if got := f.out.last(t).Text; got != "Task not found." {
		t.Fatalf("reply = %q", got)
	}
}

func TestSendDailyDigest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.bot.SendDailyDigest(ctx); err != nil {
		t.Fatalf("digest without subscribers: %v", err)
	}
	if len(f.out.messages) != 0 {
		t.Fatalf("sent without subscribers")
	}

	for _, id := range []int64{1, 2} {
		if _, err := f.subs.UpsertFromTelegram(ctx, id, "", "", ""); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.bot.SendDailyDigest(ctx); err != nil {
		t.Fatalf("digest: %v", err)
	}
	if len(f.out.messages) != 2 || f.out.messages[0].ChatID != 1 || f.out.messages[1].ChatID != 2 {
		t.Fatalf("messages = %+v", f.out.messages)
	}
}
