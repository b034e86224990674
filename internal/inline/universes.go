package inline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"universes/internal/display"
)

var (
	ErrNoUniverse        = errors.New("Select at least one universe.")
	ErrPrimaryCount      = errors.New("Mark exactly one selected universe as primary.")
	ErrDuplicateUniverse = errors.New("That universe is already selected.")
	ErrNoSuchRow         = errors.New("inline: no such universe row")
)

// UniverseRow is one line of the universes editor. UniverseID 0 means
// nothing is selected yet.
type UniverseRow struct {
	UniverseID uint
	Primary    bool
}

// UniversesSaveFunc persists the selected universes; primary indexes ids.
type UniversesSaveFunc func(ctx context.Context, ids []uint, primary int) error

// UniversesEditor edits the universe memberships of a task as a list of
// rows, each with a selection and a primary flag. The invariants are only
// checked on save, except duplicates, which are rejected on selection.
type UniversesEditor struct {
	mu          sync.Mutex
	field       string
	display     Display
	surface     Surface
	names       map[uint]string
	saved       []UniverseRow
	rows        []UniverseRow
	state       State
	inFlight    bool
	interactive bool

	onSave  UniversesSaveFunc
	alerter Alerter
}

// NewUniverses binds the editor. names lists the selectable universes.
func NewUniverses(c Common, names map[uint]string, ids []uint, primary int, onSave UniversesSaveFunc) *UniversesEditor {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	u := &UniversesEditor{
		field:       c.Field,
		display:     c.Slots.Display,
		surface:     c.Slots.Surface,
		names:       names,
		onSave:      onSave,
		alerter:     c.Alerter,
		interactive: c.Slots.Display != nil && c.Slots.Surface != nil,
	}
	for i, id := range ids {
		u.saved = append(u.saved, UniverseRow{UniverseID: id, Primary: i == primary})
	}
	if !u.interactive {
		logger.Warn("inline editor missing slots, field is read-only", zap.String("field", c.Field))
		return u
	}
	u.display.SetText(u.format(u.saved))
	u.display.SetVisible(true)
	u.surface.SetVisible(false)
	return u
}

func (u *UniversesEditor) format(rows []UniverseRow) string {
	names := make([]string, 0, len(rows))
	primary := -1
	for _, r := range rows {
		if r.UniverseID == 0 {
			continue
		}
		if r.Primary {
			primary = len(names)
		}
		names = append(names, u.names[r.UniverseID])
	}
	return display.Universes(names, primary)
}

func (u *UniversesEditor) Field() string { return u.field }

func (u *UniversesEditor) Interactive() bool { return u.interactive }

func (u *UniversesEditor) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Rows returns a copy of the rows being edited.
func (u *UniversesEditor) Rows() []UniverseRow {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]UniverseRow(nil), u.rows...)
}

// Selection is the saved universe list and the index of the primary one.
func (u *UniversesEditor) Selection() ([]uint, int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return selection(u.saved)
}

// PendingSelection is what a save would send right now.
func (u *UniversesEditor) PendingSelection() ([]uint, int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state == Editing {
		return selection(u.rows)
	}
	return selection(u.saved)
}

func selection(rows []UniverseRow) ([]uint, int) {
	ids := make([]uint, 0, len(rows))
	primary := 0
	for _, r := range rows {
		if r.UniverseID == 0 {
			continue
		}
		if r.Primary {
			primary = len(ids)
		}
		ids = append(ids, r.UniverseID)
	}
	return ids, primary
}

// FormValues renders a selection the way the task form posts it.
func FormValues(ids []uint, primary int) url.Values {
	v := url.Values{}
	for _, id := range ids {
		v.Add("universe_ids[]", strconv.FormatUint(uint64(id), 10))
	}
	v.Set("primary_universe", strconv.Itoa(primary))
	return v
}

func (u *UniversesEditor) EnterEditMode() error {
	if !u.interactive {
		return ErrNotInteractive
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state == Editing {
		return nil
	}
	u.state = Editing
	u.rows = append([]UniverseRow(nil), u.saved...)
	u.display.SetVisible(false)
	u.surface.SetVisible(true)
	return nil
}

// AddRow appends an empty row. The first row of an empty list is primary.
func (u *UniversesEditor) AddRow() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state != Editing {
		return ErrNotEditing
	}
	u.rows = append(u.rows, UniverseRow{Primary: len(u.rows) == 0})
	return nil
}

// RemoveRow drops row i. Removing the primary row makes the first
// remaining row primary.
func (u *UniversesEditor) RemoveRow(i int) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state != Editing {
		return ErrNotEditing
	}
	if i < 0 || i >= len(u.rows) {
		return ErrNoSuchRow
	}
	wasPrimary := u.rows[i].Primary
	u.rows = append(u.rows[:i], u.rows[i+1:]...)
	if wasPrimary && len(u.rows) > 0 {
		u.rows[0].Primary = true
	}
	return nil
}

// Select sets the universe of row i. A universe already chosen in another
// row is refused and the row is reset to empty.
func (u *UniversesEditor) Select(i int, universeID uint) error {
	u.mu.Lock()
	if u.state != Editing {
		u.mu.Unlock()
		return ErrNotEditing
	}
	if i < 0 || i >= len(u.rows) {
		u.mu.Unlock()
		return ErrNoSuchRow
	}
	if universeID != 0 {
		if _, ok := u.names[universeID]; !ok {
			u.mu.Unlock()
			return fmt.Errorf("inline: unknown universe %d", universeID)
		}
		for j, r := range u.rows {
			if j != i && r.UniverseID == universeID {
				u.rows[i].UniverseID = 0
				u.mu.Unlock()
				u.alert(ErrDuplicateUniverse.Error())
				return ErrDuplicateUniverse
			}
		}
	}
	u.rows[i].UniverseID = universeID
	u.mu.Unlock()
	return nil
}

// SetPrimary marks row i as the only primary row.
func (u *UniversesEditor) SetPrimary(i int) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state != Editing {
		return ErrNotEditing
	}
	if i < 0 || i >= len(u.rows) {
		return ErrNoSuchRow
	}
	for j := range u.rows {
		u.rows[j].Primary = j == i
	}
	return nil
}

func (u *UniversesEditor) Cancel() {
	if !u.interactive {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.state = Viewing
	u.rows = nil
	u.surface.SetVisible(false)
	u.display.SetVisible(true)
}

// validate checks the save invariants against the selected rows.
func validateRows(rows []UniverseRow) error {
	selected, primaries := 0, 0
	for _, r := range rows {
		if r.UniverseID == 0 {
			continue
		}
		selected++
		if r.Primary {
			primaries++
		}
	}
	if selected == 0 {
		return ErrNoUniverse
	}
	if primaries != 1 {
		return ErrPrimaryCount
	}
	return nil
}

// Save validates the rows and sends them once.
func (u *UniversesEditor) Save(ctx context.Context) error {
	if !u.interactive {
		return ErrNotInteractive
	}
	u.mu.Lock()
	if u.state != Editing {
		u.mu.Unlock()
		return ErrNotEditing
	}
	if u.inFlight {
		u.mu.Unlock()
		return ErrSaveInFlight
	}
	if err := validateRows(u.rows); err != nil {
		u.mu.Unlock()
		u.alert(err.Error())
		return errors.Join(ErrInvalid, err)
	}
	var pending []UniverseRow
	for _, r := range u.rows {
		if r.UniverseID != 0 {
			pending = append(pending, r)
		}
	}
	ids, primary := selection(pending)
	u.inFlight = true
	u.mu.Unlock()

	var err error
	if u.onSave != nil {
		err = u.onSave(ctx, ids, primary)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.inFlight = false
	if err != nil {
		return err
	}
	u.saved = pending
	u.rows = nil
	u.state = Viewing
	u.display.SetText(u.format(u.saved))
	u.surface.SetVisible(false)
	u.display.SetVisible(true)
	return nil
}

// Refresh replaces the saved selection with the server's.
func (u *UniversesEditor) Refresh(ids []uint, primary int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.saved = u.saved[:0]
	for i, id := range ids {
		u.saved = append(u.saved, UniverseRow{UniverseID: id, Primary: i == primary})
	}
	if u.interactive {
		u.display.SetText(u.format(u.saved))
	}
}

func (u *UniversesEditor) alert(msg string) {
	if u.alerter != nil {
		u.alerter.Alert(msg)
	}
}
