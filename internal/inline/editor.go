package inline

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// State is the lifecycle state of a field editor.
type State int

const (
	Viewing State = iota
	Editing
)

func (s State) String() string {
	if s == Editing {
		return "editing"
	}
	return "viewing"
}

var (
	ErrNotInteractive = errors.New("inline: field is not interactive")
	ErrNotEditing     = errors.New("inline: field is not in edit mode")
	ErrSaveInFlight   = errors.New("inline: a save for this field is already running")
	ErrInvalid        = errors.New("inline: value rejected")
	ErrSaveFailed     = errors.New("inline: save failed")
)

// SaveFunc persists a new value. A nil error means the value was stored.
type SaveFunc func(ctx context.Context, newValue, oldValue string) error

// Config describes one field editor.
type Config struct {
	Field string
	Slots Slots

	// Format renders a stored value for the display slot.
	Format func(value string) string
	// Normalize cleans raw control input before validation.
	Normalize func(value string) string
	// Validate rejects a value before anything is sent. The error text is
	// shown to the user.
	Validate func(value string) error
	// SkipUnchanged cancels instead of saving when the value did not change.
	SkipUnchanged bool

	OnSave  SaveFunc
	Alerter Alerter
	Logger  *zap.Logger
}

// Editor is the two-state view/edit machine shared by every field type.
type Editor struct {
	mu          sync.Mutex
	cfg         Config
	state       State
	original    string
	inFlight    bool
	interactive bool
}

// Bind attaches an editor to its slots with value as the saved value. With
// a slot missing the editor logs a warning and stays inert.
func Bind(cfg Config, value string) *Editor {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Format == nil {
		cfg.Format = func(v string) string { return v }
	}
	e := &Editor{cfg: cfg, original: value, interactive: cfg.Slots.complete()}
	if !e.interactive {
		cfg.Logger.Warn("inline editor missing slots, field is read-only",
			zap.String("field", cfg.Field),
			zap.Bool("display", cfg.Slots.Display != nil),
			zap.Bool("surface", cfg.Slots.Surface != nil),
			zap.Bool("control", cfg.Slots.Control != nil),
		)
		return e
	}
	cfg.Slots.Control.SetValue(value)
	cfg.Slots.Display.SetText(cfg.Format(value))
	cfg.Slots.Display.SetVisible(true)
	cfg.Slots.Surface.SetVisible(false)
	return e
}

func (e *Editor) Field() string { return e.cfg.Field }

func (e *Editor) Interactive() bool { return e.interactive }

func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Value is the last saved value.
func (e *Editor) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.original
}

// Pending is what the control currently holds.
func (e *Editor) Pending() string {
	if !e.interactive {
		return e.Value()
	}
	return e.cfg.Slots.Control.Value()
}

// SetPending writes v into the control as if the user typed it.
func (e *Editor) SetPending(v string) {
	if e.interactive {
		e.cfg.Slots.Control.SetValue(v)
	}
}

// EnterEditMode shows the edit surface with the saved value as the
// rollback point.
func (e *Editor) EnterEditMode() error {
	if !e.interactive {
		return ErrNotInteractive
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Editing {
		return nil
	}
	e.state = Editing
	e.cfg.Slots.Control.SetValue(e.original)
	e.cfg.Slots.Display.SetVisible(false)
	e.cfg.Slots.Surface.SetVisible(true)
	e.cfg.Slots.Control.Focus()
	return nil
}

// Cancel drops the pending value and returns to viewing.
func (e *Editor) Cancel() {
	if !e.interactive {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
}

func (e *Editor) cancelLocked() {
	e.state = Viewing
	e.cfg.Slots.Control.SetValue(e.original)
	e.cfg.Slots.Surface.SetVisible(false)
	e.cfg.Slots.Display.SetVisible(true)
}

// Save sends the pending value through OnSave exactly once. The editor
// stays in edit mode when validation or the save fails.
func (e *Editor) Save(ctx context.Context) error {
	if !e.interactive {
		return ErrNotInteractive
	}
	e.mu.Lock()
	if e.state != Editing {
		e.mu.Unlock()
		return ErrNotEditing
	}
	if e.inFlight {
		e.mu.Unlock()
		return ErrSaveInFlight
	}
	value := e.cfg.Slots.Control.Value()
	if e.cfg.Normalize != nil {
		value = e.cfg.Normalize(value)
	}
	if e.cfg.SkipUnchanged && value == e.original {
		e.cancelLocked()
		e.mu.Unlock()
		return nil
	}
	if e.cfg.Validate != nil {
		if err := e.cfg.Validate(value); err != nil {
			e.mu.Unlock()
			if e.cfg.Alerter != nil {
				e.cfg.Alerter.Alert(err.Error())
			}
			return errors.Join(ErrInvalid, err)
		}
	}
	old := e.original
	e.inFlight = true
	e.mu.Unlock()

	var err error
	if e.cfg.OnSave != nil {
		err = e.cfg.OnSave(ctx, value, old)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight = false
	if err != nil {
		return err
	}
	e.original = value
	e.cfg.Slots.Control.SetValue(value)
	e.cfg.Slots.Display.SetText(e.cfg.Format(value))
	e.state = Viewing
	e.cfg.Slots.Surface.SetVisible(false)
	e.cfg.Slots.Display.SetVisible(true)
	return nil
}

// Refresh replaces the saved value with one from the server, e.g. after
// another field's save returned the whole resource. Editors in edit mode
// keep their pending value.
func (e *Editor) Refresh(value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.original = value
	if !e.interactive {
		return
	}
	e.cfg.Slots.Display.SetText(e.cfg.Format(value))
	if e.state == Viewing {
		e.cfg.Slots.Control.SetValue(value)
	}
}

// Reformat redraws the display, for formatters that depend on state
// outside the value.
func (e *Editor) Reformat() {
	if !e.interactive {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Slots.Display.SetText(e.cfg.Format(e.original))
}
