package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"universes/internal/model"
	"universes/internal/repository"
	"universes/internal/status"
	"universes/internal/timeunit"
)

// upcomingWindow is how far ahead the digest looks for deadlines.
const upcomingWindow = 7 * 24 * time.Hour

// ReminderService builds human-readable summaries for daily notifications.
type ReminderService struct {
	tasks     *repository.TaskRepository
	universes *repository.UniverseRepository
	members   *repository.MembershipRepository
}

func NewReminderService(tasks *repository.TaskRepository, universes *repository.UniverseRepository, members *repository.MembershipRepository) *ReminderService {
	return &ReminderService{tasks: tasks, universes: universes, members: members}
}

// DailySummary lists late tasks, tasks due today and tasks due within a
// week. The result is Telegram HTML.
func (s *ReminderService) DailySummary(ctx context.Context, now time.Time) (string, error) {
	tasks, err := s.tasks.ListOpen(ctx)
	if err != nil {
		return "", err
	}
	names, err := s.universes.Names(ctx)
	if err != nil {
		return "", err
	}
	ids := make([]uint, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	memberships, err := s.members.ListForItems(ctx, model.ItemTask, ids)
	if err != nil {
		return "", err
	}

	var late, today, upcoming []model.Task
	for _, task := range tasks {
		switch {
		case DisplayStatus(task, now) == status.Late:
			late = append(late, task)
		case task.DeadlineAt == nil:
		case sameDay(*task.DeadlineAt, now):
			today = append(today, task)
		case task.DeadlineAt.Sub(now) <= upcomingWindow:
			upcoming = append(upcoming, task)
		}
	}
	for _, group := range [][]model.Task{late, today, upcoming} {
		sortByDeadline(group)
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily digest</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n", now.Format("Monday, Jan 2 2006")))

	sections := []struct {
		title string
		tasks []model.Task
		empty string
	}{
		{"⚠️ <b>Late</b>", late, "nothing is late"},
		{"⏰ <b>Due today</b>", today, "nothing due today"},
		{"🗓 <b>This week</b>", upcoming, "nothing due this week"},
	}
	for _, sec := range sections {
		builder.WriteString("\n" + sec.title + "\n")
		if len(sec.tasks) == 0 {
			builder.WriteString("— " + sec.empty + "\n")
			continue
		}
		for _, task := range sec.tasks {
			builder.WriteString(formatTask(task, primaryUniverse(memberships[task.ID], names), now))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

func primaryUniverse(items []model.UniverseItem, names map[uint]string) string {
	for _, item := range items {
		if item.Primary() {
			return names[item.UniverseID]
		}
	}
	if len(items) > 0 {
		return names[items[0].UniverseID]
	}
	return ""
}

func formatTask(task model.Task, universe string, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("• " + html.EscapeString(strings.TrimSpace(task.Name)))
	if trimmed := strings.TrimSpace(universe); trimmed != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(trimmed)))
	}

	if task.DeadlineAt != nil {
		d := task.DeadlineAt.In(now.Location())
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s · %s", d.Format("Jan 2, 3:04 PM"), humanize.RelTime(d, now, "ago", "from now")))
	}
	if task.EstimatedTime != nil {
		sb.WriteString("\n   ⌛ " + timeunit.Label(task.EstimatedTime, timeunit.Preferred(*task.EstimatedTime)))
	}
	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(task.Description))))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func sortByDeadline(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		switch {
		case tasks[i].DeadlineAt == nil && tasks[j].DeadlineAt == nil:
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		case tasks[i].DeadlineAt == nil:
			return false
		case tasks[j].DeadlineAt == nil:
			return true
		default:
			return tasks[i].DeadlineAt.Before(*tasks[j].DeadlineAt)
		}
	})
}

func sameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
