package inline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"universes/internal/display"
	"universes/internal/timeunit"
)

// Common holds what every variant passes through to the base editor.
type Common struct {
	Field   string
	Slots   Slots
	OnSave  SaveFunc
	Alerter Alerter
	Logger  *zap.Logger
}

func (c Common) config() Config {
	return Config{Field: c.Field, Slots: c.Slots, OnSave: c.OnSave, Alerter: c.Alerter, Logger: c.Logger}
}

// NewText binds a single-line text field. Input is trimmed and an
// unchanged value cancels instead of saving.
func NewText(c Common, value string) *Editor {
	cfg := c.config()
	cfg.Normalize = strings.TrimSpace
	cfg.SkipUnchanged = true
	return Bind(cfg, value)
}

// NewRequiredText is NewText that refuses an empty value.
func NewRequiredText(c Common, value, label string) *Editor {
	cfg := c.config()
	cfg.Normalize = strings.TrimSpace
	cfg.SkipUnchanged = true
	cfg.Validate = func(v string) error {
		if v == "" {
			return fmt.Errorf("%s can not be empty.", label)
		}
		return nil
	}
	return Bind(cfg, value)
}

// NewTextarea binds a multi-line text field.
func NewTextarea(c Common, value string) *Editor {
	cfg := c.config()
	cfg.Normalize = func(v string) string {
		return strings.TrimSpace(strings.ReplaceAll(v, "\r\n", "\n"))
	}
	cfg.SkipUnchanged = true
	return Bind(cfg, value)
}

// NewEnum binds a select over a fixed set of values. The display spells
// values out in words.
func NewEnum(c Common, value string, options []string) *Editor {
	cfg := c.config()
	cfg.Normalize = strings.TrimSpace
	cfg.Format = display.Enum
	cfg.SkipUnchanged = true
	cfg.Validate = func(v string) error {
		for _, o := range options {
			if v == o {
				return nil
			}
		}
		return fmt.Errorf("%q is not a valid choice.", v)
	}
	return Bind(cfg, value)
}

// DeadlineLayout is the value format of a deadline control.
const DeadlineLayout = "2006-01-02T15:04"

// DeadlineEditor edits a date and time. Empty means no deadline.
type DeadlineEditor struct {
	*Editor
	loc *time.Location
}

func NewDeadline(c Common, value *time.Time, loc *time.Location) *DeadlineEditor {
	if loc == nil {
		loc = time.Local
	}
	d := &DeadlineEditor{loc: loc}
	cfg := c.config()
	cfg.Normalize = strings.TrimSpace
	cfg.Format = func(v string) string {
		t, _ := d.parse(v)
		return display.Deadline(t)
	}
	cfg.Validate = func(v string) error {
		_, err := d.parse(v)
		return err
	}
	d.Editor = Bind(cfg, FormatDeadline(value, loc))
	return d
}

// FormatDeadline renders t as a control value.
func FormatDeadline(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(DeadlineLayout)
}

func (d *DeadlineEditor) parse(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DeadlineLayout, v, d.loc)
	if err != nil {
		return nil, errors.New("Enter the deadline as a date and time.")
	}
	return &t, nil
}

// Today sets the pending value to 17:00 on the day of now.
func (d *DeadlineEditor) Today(now time.Time) {
	now = now.In(d.loc)
	y, m, day := now.Date()
	d.SetPending(time.Date(y, m, day, 17, 0, 0, 0, d.loc).Format(DeadlineLayout))
}

// Time is the saved deadline.
func (d *DeadlineEditor) Time() *time.Time {
	t, _ := d.parse(d.Value())
	return t
}

// unitControl shows minutes as a numeral in the selected unit. Value
// returns whole minutes, or the raw text when it is not a number.
type unitControl struct {
	mu    sync.Mutex
	input Control
	unit  timeunit.Unit
}

func (c *unitControl) Unit() timeunit.Unit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unit
}

func (c *unitControl) Value() string {
	raw := strings.TrimSpace(c.input.Value())
	if raw == "" {
		return ""
	}
	m, err := timeunit.ToMinutes(raw, c.Unit())
	if err != nil {
		return raw
	}
	return strconv.Itoa(m)
}

func (c *unitControl) SetValue(minutes string) {
	if minutes == "" {
		c.input.SetValue("")
		return
	}
	m, err := strconv.Atoi(minutes)
	if err != nil {
		c.input.SetValue(minutes)
		return
	}
	c.input.SetValue(timeunit.FromMinutes(m, c.Unit()))
}

func (c *unitControl) Focus() { c.input.Focus() }

// EstimateEditor edits an estimated time stored in minutes. The control
// shows the numeral in the selected unit.
type EstimateEditor struct {
	*Editor
	control *unitControl
	alerter Alerter
}

func NewEstimate(c Common, minutes *int) *EstimateEditor {
	unit := timeunit.Minutes
	value := ""
	if minutes != nil {
		unit = timeunit.Preferred(*minutes)
		value = strconv.Itoa(*minutes)
	}
	e := &EstimateEditor{alerter: c.Alerter}
	cfg := c.config()
	if cfg.Slots.Control != nil {
		e.control = &unitControl{input: cfg.Slots.Control, unit: unit}
		cfg.Slots.Control = e.control
	}
	cfg.Format = func(v string) string {
		return timeunit.Label(parseMinutes(v), e.Unit())
	}
	cfg.Validate = func(v string) error {
		if v == "" {
			return nil
		}
		if n, err := strconv.Atoi(v); err != nil || n < 0 {
			return errors.New("Estimated time must be a non-negative number.")
		}
		return nil
	}
	e.Editor = Bind(cfg, value)
	return e
}

func parseMinutes(v string) *int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

// Unit is the unit the control shows.
func (e *EstimateEditor) Unit() timeunit.Unit {
	if e.control == nil {
		return timeunit.Minutes
	}
	return e.control.Unit()
}

// Numeral is the raw control text in the current unit.
func (e *EstimateEditor) Numeral() string {
	if e.control == nil {
		return ""
	}
	return strings.TrimSpace(e.control.input.Value())
}

// SetNumeral types n into the control in the current unit.
func (e *EstimateEditor) SetNumeral(n string) {
	if e.control != nil {
		e.control.input.SetValue(n)
	}
}

// Minutes is the saved estimate.
func (e *EstimateEditor) Minutes() *int {
	return parseMinutes(e.Value())
}

// SetUnit switches the control to unit and converts the numeral it shows.
// The saved minutes are untouched until the next save.
func (e *EstimateEditor) SetUnit(unit timeunit.Unit) error {
	if e.control == nil {
		return ErrNotInteractive
	}
	from := e.control.Unit()
	if from == unit {
		return nil
	}
	converted, err := timeunit.Convert(e.Numeral(), from, unit)
	if err != nil {
		if e.alerter != nil {
			e.alerter.Alert("Estimated time must be a non-negative number.")
		}
		return errors.Join(ErrInvalid, err)
	}
	e.control.mu.Lock()
	e.control.unit = unit
	e.control.mu.Unlock()
	e.control.input.SetValue(converted)
	return nil
}

// ToggleUnit flips between hours and minutes.
func (e *EstimateEditor) ToggleUnit() error {
	if e.Unit() == timeunit.Hours {
		return e.SetUnit(timeunit.Minutes)
	}
	return e.SetUnit(timeunit.Hours)
}

// RecurringEditor selects the recurring task a task is an instance of.
type RecurringEditor struct {
	*Editor
	names map[string]string
}

// NewRecurring binds the recurring task select. names maps ids to names.
func NewRecurring(c Common, id *uint, names map[uint]string) *RecurringEditor {
	r := &RecurringEditor{names: make(map[string]string, len(names))}
	for k, v := range names {
		r.names[strconv.FormatUint(uint64(k), 10)] = v
	}
	value := ""
	if id != nil {
		value = strconv.FormatUint(uint64(*id), 10)
	}
	cfg := c.config()
	cfg.Normalize = strings.TrimSpace
	cfg.SkipUnchanged = true
	cfg.Format = func(v string) string {
		if v == "" {
			return display.Recurring("")
		}
		return display.Recurring(r.names[v])
	}
	cfg.Validate = func(v string) error {
		if v == "" {
			return nil
		}
		if _, ok := r.names[v]; !ok {
			return errors.New("Select a recurring task from the list.")
		}
		return nil
	}
	r.Editor = Bind(cfg, value)
	return r
}

// Recurring reports whether a recurring task is selected.
func (r *RecurringEditor) Recurring() bool {
	return r.Value() != ""
}
