// Package inline is the view model behind inline-editable task and
// universe cards. Each field toggles between viewing and editing; saves go
// through a Saver that resends the whole resource to the API.
//
// Views plug in through small slot interfaces. The headless implementations
// in this package back the edit command and the tests.
package inline

// Display shows the formatted value of a field.
type Display interface {
	SetText(text string)
	Text() string
	SetVisible(visible bool)
}

// Surface is the container shown while a field is being edited.
type Surface interface {
	SetVisible(visible bool)
}

// Control holds the pending value of a field.
type Control interface {
	Value() string
	SetValue(v string)
	Focus()
}

// Checkbox is the completion toggle of a task card.
type Checkbox interface {
	Checked() bool
	SetChecked(checked bool)
	Enabled() bool
	SetEnabled(enabled bool)
}

// Alerter shows blocking messages to the user.
type Alerter interface {
	Alert(message string)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(question string) bool
}

// Slots are the three views one field editor binds to.
type Slots struct {
	Display Display
	Surface Surface
	Control Control
}

func (s Slots) complete() bool {
	return s.Display != nil && s.Surface != nil && s.Control != nil
}
