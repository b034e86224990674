package inline

import "sync"

// TextDisplay is an in-memory Display.
type TextDisplay struct {
	mu      sync.Mutex
	text    string
	visible bool
}

func NewTextDisplay(text string) *TextDisplay {
	return &TextDisplay{text: text, visible: true}
}

func (d *TextDisplay) SetText(text string) {
	d.mu.Lock()
	d.text = text
	d.mu.Unlock()
}

func (d *TextDisplay) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

func (d *TextDisplay) SetVisible(visible bool) {
	d.mu.Lock()
	d.visible = visible
	d.mu.Unlock()
}

func (d *TextDisplay) Visible() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.visible
}

// Panel is an in-memory Surface.
type Panel struct {
	mu      sync.Mutex
	visible bool
}

func (p *Panel) SetVisible(visible bool) {
	p.mu.Lock()
	p.visible = visible
	p.mu.Unlock()
}

func (p *Panel) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// Input is an in-memory Control.
type Input struct {
	mu      sync.Mutex
	value   string
	focused bool
}

func NewInput(value string) *Input {
	return &Input{value: value}
}

func (i *Input) Value() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.value
}

func (i *Input) SetValue(v string) {
	i.mu.Lock()
	i.value = v
	i.mu.Unlock()
}

func (i *Input) Focus() {
	i.mu.Lock()
	i.focused = true
	i.mu.Unlock()
}

func (i *Input) Focused() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.focused
}

// Toggle is an in-memory Checkbox.
type Toggle struct {
	mu      sync.Mutex
	checked bool
	enabled bool
}

func NewToggle(checked bool) *Toggle {
	return &Toggle{checked: checked, enabled: true}
}

func (t *Toggle) Checked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.checked
}

func (t *Toggle) SetChecked(checked bool) {
	t.mu.Lock()
	t.checked = checked
	t.mu.Unlock()
}

func (t *Toggle) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Toggle) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

// HeadlessSlots builds a complete set of in-memory slots showing text.
func HeadlessSlots(text, value string) Slots {
	return Slots{Display: NewTextDisplay(text), Surface: &Panel{}, Control: NewInput(value)}
}

// RecordingAlerter keeps every alert.
type RecordingAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (a *RecordingAlerter) Alert(message string) {
	a.mu.Lock()
	a.messages = append(a.messages, message)
	a.mu.Unlock()
}

func (a *RecordingAlerter) Messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.messages...)
}

// FixedConfirmer answers every question the same way.
type FixedConfirmer bool

func (c FixedConfirmer) Confirm(string) bool { return bool(c) }
