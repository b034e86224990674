package inline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"universes/internal/client"
)

// DefaultCompleteDelay is how long a ticked complete box waits before the
// request is sent.
const DefaultCompleteDelay = 2 * time.Second

// Timer is a pending delayed call.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func timeAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// FieldEditor is what the page keeps of every field editor.
type FieldEditor interface {
	Field() string
	State() State
	Interactive() bool
	Cancel()
}

// PageOptions are the dependencies of a page. API is required.
type PageOptions struct {
	API           API
	Alerter       Alerter
	Confirmer     Confirmer
	Logger        *zap.Logger
	Expansion     ExpansionStore
	Now           func() time.Time
	AfterFunc     AfterFunc
	Location      *time.Location
	CompleteDelay time.Duration
}

// Lookups are the names select fields choose from.
type Lookups struct {
	Universes map[uint]string
	Recurring map[uint]string
}

// Views supplies the slots a card binds to. Zero values fall back to the
// headless widgets.
type Views struct {
	Slots    func(field, value string) Slots
	Checkbox Checkbox
}

func (v Views) slots(field, value string) Slots {
	if v.Slots == nil {
		return HeadlessSlots(value, value)
	}
	return v.Slots(field, value)
}

type cardKey struct {
	kind Kind
	id   uint
}

// Page holds the cards and field editors of one page or session.
type Page struct {
	api           API
	alerter       Alerter
	confirmer     Confirmer
	logger        *zap.Logger
	expansion     ExpansionStore
	now           func() time.Time
	afterFunc     AfterFunc
	loc           *time.Location
	completeDelay time.Duration
	saver         *Saver

	mu      sync.RWMutex
	cards   map[cardKey]*Card
	editors map[string]FieldEditor
}

func NewPage(opts PageOptions) (*Page, error) {
	if opts.API == nil {
		return nil, errors.New("inline: page needs an API")
	}
	p := &Page{
		api:           opts.API,
		alerter:       opts.Alerter,
		confirmer:     opts.Confirmer,
		logger:        opts.Logger,
		expansion:     opts.Expansion,
		now:           opts.Now,
		afterFunc:     opts.AfterFunc,
		loc:           opts.Location,
		completeDelay: opts.CompleteDelay,
		cards:         make(map[cardKey]*Card),
		editors:       make(map[string]FieldEditor),
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.expansion == nil {
		p.expansion = NewMemoryExpansionStore()
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.afterFunc == nil {
		p.afterFunc = timeAfterFunc
	}
	if p.loc == nil {
		p.loc = time.Local
	}
	if p.completeDelay <= 0 {
		p.completeDelay = DefaultCompleteDelay
	}
	p.saver = &Saver{page: p}
	return p, nil
}

func (p *Page) Saver() *Saver { return p.saver }

// Now reads the page clock.
func (p *Page) Now() time.Time { return p.now() }

// FieldID names a field editor on the page.
func FieldID(kind Kind, id uint, field string) string {
	return fmt.Sprintf("%s-%d-%s", kind, id, field)
}

func (p *Page) Card(kind Kind, id uint) (*Card, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.cards[cardKey{kind, id}]
	return c, ok
}

func (p *Page) Editor(fieldID string) (FieldEditor, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.editors[fieldID]
	return e, ok
}

// Len is the number of cards on the page.
func (p *Page) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.cards)
}

func (p *Page) add(c *Card) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cards[cardKey{c.kind, c.id}] = c
	for _, e := range c.fields() {
		p.editors[FieldID(c.kind, c.id, e.Field())] = e
	}
}

func (p *Page) remove(c *Card) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cards, cardKey{c.kind, c.id})
	for _, e := range c.fields() {
		delete(p.editors, FieldID(c.kind, c.id, e.Field()))
	}
}

func (p *Page) alert(msg string) {
	if p.alerter == nil {
		p.logger.Warn("no alerter for message", zap.String("message", msg))
		return
	}
	p.alerter.Alert(msg)
}

func (p *Page) confirm(question string) bool {
	if p.confirmer == nil {
		p.logger.Warn("no confirmer, action refused", zap.String("question", question))
		return false
	}
	return p.confirmer.Confirm(question)
}

func (p *Page) newCard(kind Kind, id uint) *Card {
	return &Card{
		page:   p,
		kind:   kind,
		id:     id,
		logger: p.logger.With(zap.String("kind", string(kind)), zap.Uint("id", id)),
	}
}

func (p *Page) common(c *Card, field string, views Views, value string, save SaveFunc) Common {
	return Common{
		Field:   field,
		Slots:   views.slots(field, value),
		OnSave:  save,
		Alerter: p.alerter,
		Logger:  c.logger,
	}
}

// saveField is the SaveFunc of a plain field.
func (p *Page) saveField(kind Kind, id uint, field string) SaveFunc {
	return func(ctx context.Context, newValue, _ string) error {
		if !p.saver.Save(ctx, kind, id, field, newValue, SaveOptions{}) {
			return ErrSaveFailed
		}
		return nil
	}
}

// MountTask adds a task card bound to headless widgets.
func (p *Page) MountTask(ctx context.Context, t *client.Task, l Lookups) *Card {
	return p.MountTaskWith(ctx, t, l, Views{})
}

// MountTaskWith adds a task card bound to views.
func (p *Page) MountTaskWith(ctx context.Context, t *client.Task, l Lookups, views Views) *Card {
	c := p.newCard(KindTask, t.ID)

	c.Name = NewRequiredText(p.common(c, "name", views, t.Name, p.saveField(KindTask, t.ID, "name")), t.Name, "Name")
	c.Description = NewTextarea(p.common(c, "description", views, t.Description, p.saveField(KindTask, t.ID, "description")), t.Description)

	deadlineSave := func(ctx context.Context, newValue, _ string) error {
		at, err := c.Deadline.parse(newValue)
		if err != nil {
			return err
		}
		sent := ""
		if at != nil {
			sent = at.Format(time.RFC3339)
		}
		if !p.saver.Save(ctx, KindTask, t.ID, "deadline_at", sent, SaveOptions{}) {
			return ErrSaveFailed
		}
		c.setDeadline(at)
		return nil
	}
	deadline := FormatDeadline(t.DeadlineAt, p.loc)
	c.Deadline = NewDeadline(p.common(c, "deadline_at", views, deadline, deadlineSave), t.DeadlineAt, p.loc)

	estimateSave := func(ctx context.Context, _, _ string) error {
		extra := map[string][]string{"time_unit": {string(c.Estimate.Unit())}}
		if !p.saver.Save(ctx, KindTask, t.ID, "estimated_time", c.Estimate.Numeral(), SaveOptions{Extra: extra}) {
			return ErrSaveFailed
		}
		return nil
	}
	c.Estimate = NewEstimate(p.common(c, "estimated_time", views, minutesValue(t.EstimatedTime), estimateSave), t.EstimatedTime)

	recurringSave := func(ctx context.Context, newValue, _ string) error {
		if !p.saver.Save(ctx, KindTask, t.ID, "recurring_task_id", newValue, SaveOptions{}) {
			return ErrSaveFailed
		}
		c.setRecurring(newValue != "")
		return nil
	}
	c.Recurring = NewRecurring(p.common(c, "recurring_task_id", views, idValue(t.RecurringTaskID), recurringSave), t.RecurringTaskID, l.Recurring)

	universesSave := func(ctx context.Context, ids []uint, primary int) error {
		if !p.saver.SaveValues(ctx, KindTask, t.ID, FormValues(ids, primary)) {
			return ErrSaveFailed
		}
		return nil
	}
	c.Universes = NewUniverses(p.common(c, "universe_ids", views, "", nil), l.Universes, t.UniverseIDs, t.PrimaryUniverse, universesSave)

	c.checkbox = views.Checkbox
	if c.checkbox == nil {
		c.checkbox = NewToggle(false)
	}
	c.snapshot.CompletedAt = t.CompletedAt
	c.snapshot.SkippedAt = t.SkippedAt
	c.snapshot.Status = t.Status
	c.snapshot.DeadlineAt = t.DeadlineAt
	c.recurring = t.RecurringTaskID != nil
	c.rederive()
	if t.CompletedAt != nil {
		c.completion = Completed
		c.checkbox.SetChecked(true)
		c.checkbox.SetEnabled(false)
	} else {
		c.checkbox.SetChecked(false)
		c.checkbox.SetEnabled(true)
	}

	c.loadExpanded(ctx)
	p.add(c)
	return c
}

// MountUniverse adds a universe card bound to headless widgets.
func (p *Page) MountUniverse(ctx context.Context, u *client.Universe) *Card {
	return p.MountUniverseWith(ctx, u, Views{})
}

// MountUniverseWith adds a universe card bound to views.
func (p *Page) MountUniverseWith(ctx context.Context, u *client.Universe, views Views) *Card {
	c := p.newCard(KindUniverse, u.ID)
	c.parentID = u.ParentID
	c.Name = NewRequiredText(p.common(c, "name", views, u.Name, p.saveField(KindUniverse, u.ID, "name")), u.Name, "Name")
	c.Status = NewEnum(p.common(c, "status", views, u.Status, p.saveField(KindUniverse, u.ID, "status")), u.Status, universeStatusOptions())
	c.loadExpanded(ctx)
	p.add(c)
	return c
}
