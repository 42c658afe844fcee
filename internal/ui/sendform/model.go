package sendform

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shipdesk-notify/internal/model"
	"github.com/nhle/shipdesk-notify/internal/theme"
)

// SubmitMsg is dispatched when the admin confirms the form.
type SubmitMsg struct {
	Draft model.Draft
}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title     string
	message   string
	audience  model.Audience
	recipient string
}

// Model is the Bubble Tea model for composing a notification.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	width  int
	height int
}

// New creates a new send form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{audience: model.AudienceAll},
		width:  width,
		height: height,
	}
}

// Start resets the bindings and builds a fresh form.
func (m *Model) Start() tea.Cmd {
	m.fb.title = ""
	m.fb.message = ""
	m.fb.audience = model.AudienceAll
	m.fb.recipient = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the send form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		draft := m.Draft()
		m.form = nil
		return m, func() tea.Msg { return SubmitMsg{Draft: draft} }
	}
	if m.form.State == huh.StateAborted {
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// Draft returns the draft described by the current field values.
func (m Model) Draft() model.Draft {
	d := model.Draft{
		Title:    strings.TrimSpace(m.fb.title),
		Message:  strings.TrimSpace(m.fb.message),
		Audience: m.fb.audience,
	}
	if d.Audience == model.AudienceSpecific {
		d.RecipientID = strings.TrimSpace(m.fb.recipient)
	}
	return d
}

// View renders the send form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("Send Notification") + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Placeholder("Optional, defaults to the category").
				Value(&m.fb.title),
			huh.NewText().
				Title("Message").
				Placeholder("What should recipients see?").
				Value(&m.fb.message).
				Validate(validateRequired("Message")),
			huh.NewSelect[model.Audience]().
				Title("Audience").
				Options(
					huh.NewOption("All users", model.AudienceAll),
					huh.NewOption("Specific user", model.AudienceSpecific),
				).
				Value(&m.fb.audience),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Recipient ID").
				Placeholder("customer id").
				Value(&m.fb.recipient).
				Validate(validateRequired("Recipient ID")),
		).WithHideFunc(func() bool {
			return m.fb.audience != model.AudienceSpecific
		}),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
