package inline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"universes/internal/client"
	"universes/internal/model"
	"universes/internal/status"
)

// CompletionState is where a task card is in the complete checkbox flow.
type CompletionState int

const (
	Unchecked CompletionState = iota
	PendingComplete
	Completed
)

func (s CompletionState) String() string {
	switch s {
	case PendingComplete:
		return "pending"
	case Completed:
		return "completed"
	}
	return "unchecked"
}

var ErrNotConfirmed = errors.New("inline: action not confirmed")

// Card owns the field editors of one task or universe and the actions that
// are not tied to a single field.
type Card struct {
	page   *Page
	kind   Kind
	id     uint
	logger *zap.Logger

	Name        *Editor
	Description *Editor
	Status      *Editor
	Deadline    *DeadlineEditor
	Estimate    *EstimateEditor
	Recurring   *RecurringEditor
	Universes   *UniversesEditor

	mu          sync.Mutex
	snapshot    status.Snapshot
	derived     status.Status
	recurring   bool
	skipVisible bool
	completion  CompletionState
	checkbox    Checkbox
	timer       Timer
	parentID    *uint
	expanded    bool
}

func (c *Card) Kind() Kind { return c.kind }

func (c *Card) ID() uint { return c.id }

// Page is the page the card is mounted on.
func (c *Card) Page() *Page { return c.page }

// Key identifies the card in the expansion store.
func (c *Card) Key() string { return fmt.Sprintf("%s-%d", c.kind, c.id) }

// DisplayStatus is the derived status of a task card.
func (c *Card) DisplayStatus() status.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.derived
}

// SkipVisible reports whether the skip action is offered.
func (c *Card) SkipVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skipVisible
}

func (c *Card) Completion() CompletionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completion
}

// rederive recomputes the display status and skip visibility. Callers
// hold c.mu.
func (c *Card) rederive() {
	c.derived = status.Derive(c.snapshot, c.page.now())
	c.skipVisible = status.SkipVisible(c.recurring, c.snapshot.CompletedAt != nil, c.snapshot.SkippedAt != nil)
}

// baseFields is the full representation of the resource built from the
// saved values of every editor.
func (c *Card) baseFields() url.Values {
	v := url.Values{}
	if c.Name != nil {
		v.Set("name", c.Name.Value())
	}
	switch c.kind {
	case KindTask:
		if c.Description != nil {
			v.Set("description", c.Description.Value())
		}
		if c.Universes != nil {
			for k, vals := range FormValues(c.Universes.Selection()) {
				v[k] = vals
			}
		}
	case KindUniverse:
		if c.Status != nil {
			v.Set("status", c.Status.Value())
		}
		c.mu.Lock()
		if c.parentID != nil {
			v.Set("parent_id", strconv.FormatUint(uint64(*c.parentID), 10))
		} else {
			v.Set("parent_id", "")
		}
		c.mu.Unlock()
	}
	return v
}

// applyTask takes the server's copy of the task after a successful call.
func (c *Card) applyTask(t *client.Task) {
	c.mu.Lock()
	c.snapshot = status.Snapshot{
		CompletedAt: t.CompletedAt,
		SkippedAt:   t.SkippedAt,
		Status:      t.Status,
		DeadlineAt:  t.DeadlineAt,
	}
	c.recurring = t.RecurringTaskID != nil
	if t.CompletedAt != nil {
		c.completion = Completed
	}
	c.rederive()
	c.mu.Unlock()

	if c.Name != nil {
		c.Name.Refresh(t.Name)
	}
	if c.Description != nil {
		c.Description.Refresh(t.Description)
	}
	if c.Deadline != nil {
		c.Deadline.Refresh(FormatDeadline(t.DeadlineAt, c.page.loc))
	}
	if c.Estimate != nil {
		c.Estimate.Refresh(minutesValue(t.EstimatedTime))
	}
	if c.Recurring != nil {
		c.Recurring.Refresh(idValue(t.RecurringTaskID))
	}
	if c.Universes != nil {
		c.Universes.Refresh(t.UniverseIDs, t.PrimaryUniverse)
	}
}

func (c *Card) setDeadline(t *time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.DeadlineAt = t
	c.rederive()
}

func (c *Card) setRecurring(recurring bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recurring = recurring
	c.rederive()
}

// SetChecked handles the user ticking or unticking the complete box. A
// tick starts the completion delay and locks the box; nothing can untick
// it afterwards, except CancelComplete during the delay.
func (c *Card) SetChecked(ctx context.Context, checked bool) {
	if c.kind != KindTask {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.completion {
	case Unchecked:
		if !checked {
			return
		}
		c.completion = PendingComplete
		c.checkbox.SetChecked(true)
		c.checkbox.SetEnabled(false)
		ctx = context.WithoutCancel(ctx)
		c.timer = c.page.afterFunc(c.page.completeDelay, func() { c.complete(ctx) })
	default:
		c.checkbox.SetChecked(true)
	}
}

// CancelComplete stops a pending completion before its request is sent.
func (c *Card) CancelComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.completion != PendingComplete || c.timer == nil || !c.timer.Stop() {
		return false
	}
	c.timer = nil
	c.completion = Unchecked
	c.checkbox.SetChecked(false)
	c.checkbox.SetEnabled(true)
	return true
}

func (c *Card) complete(ctx context.Context) {
	c.mu.Lock()
	if c.completion != PendingComplete {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	task, err := c.page.api.CompleteTask(ctx, c.id)

	c.mu.Lock()
	if err != nil {
		c.completion = Unchecked
		c.checkbox.SetChecked(false)
		c.checkbox.SetEnabled(true)
		c.mu.Unlock()
		c.logger.Warn("complete failed", zap.Error(err))
		c.page.alert(userMessage(err, "Could not complete the task."))
		return
	}
	c.completion = Completed
	if task == nil {
		now := c.page.now()
		c.snapshot.CompletedAt = &now
		c.rederive()
	}
	c.mu.Unlock()
	if task != nil {
		c.applyTask(task)
	}
}

// ToggleSkip skips an open recurring task or unskips a skipped one. It
// reports whether a request succeeded.
func (c *Card) ToggleSkip(ctx context.Context) bool {
	if c.kind != KindTask {
		return false
	}
	c.mu.Lock()
	skipped := c.snapshot.SkippedAt != nil
	completed := c.snapshot.CompletedAt != nil
	visible := c.skipVisible
	c.mu.Unlock()
	if completed || (!skipped && !visible) {
		return false
	}

	call, fallback := c.page.api.SkipTask, "Could not skip the task."
	if skipped {
		call, fallback = c.page.api.UnskipTask, "Could not unskip the task."
	}
	task, err := call(ctx, c.id)
	if err != nil {
		c.logger.Warn("skip toggle failed", zap.Error(err))
		c.page.alert(userMessage(err, fallback))
		return false
	}
	if task != nil {
		c.applyTask(task)
	}
	return true
}

// Delete asks for confirmation, deletes the resource and takes the card
// off the page.
func (c *Card) Delete(ctx context.Context) error {
	noun := "task"
	if c.kind == KindUniverse {
		noun = "universe"
	}
	if !c.page.confirm(fmt.Sprintf("Delete this %s?", noun)) {
		return ErrNotConfirmed
	}
	var err error
	if c.kind == KindUniverse {
		err = c.page.api.DeleteUniverse(ctx, c.id)
	} else {
		err = c.page.api.DeleteTask(ctx, c.id)
	}
	if err != nil {
		c.logger.Warn("delete failed", zap.Error(err))
		c.page.alert(userMessage(err, fmt.Sprintf("Could not delete the %s.", noun)))
		return err
	}
	c.page.remove(c)
	return nil
}

// Expanded reports whether the card body is shown.
func (c *Card) Expanded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expanded
}

func (c *Card) Expand(ctx context.Context) { c.setExpanded(ctx, true) }

func (c *Card) Collapse(ctx context.Context) { c.setExpanded(ctx, false) }

func (c *Card) Toggle(ctx context.Context) { c.setExpanded(ctx, !c.Expanded()) }

// setExpanded changes the local state first. A store failure is logged and
// only costs persistence across reloads.
func (c *Card) setExpanded(ctx context.Context, expanded bool) {
	c.mu.Lock()
	c.expanded = expanded
	c.mu.Unlock()
	if err := c.page.expansion.SetExpanded(ctx, c.Key(), expanded); err != nil {
		c.logger.Warn("persist expansion state", zap.Error(err))
	}
}

func (c *Card) loadExpanded(ctx context.Context) {
	expanded, err := c.page.expansion.Expanded(ctx, c.Key())
	if err != nil {
		c.logger.Warn("load expansion state", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.expanded = expanded
	c.mu.Unlock()
}

// LogTime records time or notes against the resource. The card's own
// fields are not touched.
func (c *Card) LogTime(ctx context.Context, minutes *int, notes string) bool {
	if minutes == nil && notes == "" {
		c.page.alert("Enter minutes or notes to log.")
		return false
	}
	if minutes != nil && *minutes < 0 {
		c.page.alert("Minutes can not be negative.")
		return false
	}
	if err := c.page.api.LogTime(ctx, string(c.kind), c.id, minutes, notes); err != nil {
		c.logger.Warn("log time failed", zap.Error(err))
		c.page.alert(userMessage(err, "Could not save the log."))
		return false
	}
	return true
}

// fields lists the card's editors for the page registry.
func (c *Card) fields() []FieldEditor {
	var out []FieldEditor
	for _, e := range []*Editor{c.Name, c.Description, c.Status} {
		if e != nil {
			out = append(out, e)
		}
	}
	if c.Deadline != nil {
		out = append(out, c.Deadline)
	}
	if c.Estimate != nil {
		out = append(out, c.Estimate)
	}
	if c.Recurring != nil {
		out = append(out, c.Recurring)
	}
	if c.Universes != nil {
		out = append(out, c.Universes)
	}
	return out
}

func minutesValue(m *int) string {
	if m == nil {
		return ""
	}
	return strconv.Itoa(*m)
}

func idValue(id *uint) string {
	if id == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*id), 10)
}

func universeStatusOptions() []string {
	out := make([]string, len(model.UniverseStatuses))
	for i, s := range model.UniverseStatuses {
		out[i] = string(s)
	}
	return out
}
