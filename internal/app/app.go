package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/shipdesk-notify/internal/backend"
	"github.com/nhle/shipdesk-notify/internal/keys"
	"github.com/nhle/shipdesk-notify/internal/model"
	appsync "github.com/nhle/shipdesk-notify/internal/sync"
	"github.com/nhle/shipdesk-notify/internal/theme"
	"github.com/nhle/shipdesk-notify/internal/ui"
	helpview "github.com/nhle/shipdesk-notify/internal/ui/help"
	"github.com/nhle/shipdesk-notify/internal/ui/inbox"
	"github.com/nhle/shipdesk-notify/internal/ui/sendform"
)

// actionTimeout bounds a single mark-read or send request.
const actionTimeout = 30 * time.Second

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewInbox ViewState = iota
	ViewSend
	ViewHelp
)

// syncStartedMsg reports the result of starting the synchronizer.
type syncStartedMsg struct {
	err error
}

// markReadResultMsg reports the outcome of a mark-as-read action.
type markReadResultMsg struct {
	id  string
	err error
}

// sendResultMsg reports the outcome of a send action.
type sendResultMsg struct {
	soft bool
	err  error
}

// DesktopPermissions is the runtime switch for OS notifications.
type DesktopPermissions interface {
	Permission() model.DesktopPermission
	SetPermission(p model.DesktopPermission)
}

// Model is the root Bubble Tea model that routes between the inbox, the
// send form and the help overlay.
type Model struct {
	currentView   ViewState
	previousView  ViewState
	layout        ui.Layout
	keys          *keys.KeyMap
	sync          *appsync.Synchronizer
	desktop       DesktopPermissions
	userID        string
	inbox         inbox.Model
	sendForm      sendform.Model
	helpView      helpview.Model
	snapshot      appsync.Snapshot
	ready         bool
	statusMessage string
	errMessage    string
}

// New creates the root model for userID backed by s.
func New(s *appsync.Synchronizer, userID string) Model {
	km := keys.DefaultKeyMap()
	return Model{
		currentView: ViewInbox,
		keys:        km,
		sync:        s,
		userID:      userID,
		inbox:       inbox.New(km, 80, 24),
		sendForm:    sendform.New(80, 24),
		helpView:    helpview.New(km, 80, 24),
	}
}

// WithDesktop enables the desktop notification toggle.
func (m Model) WithDesktop(d DesktopPermissions) Model {
	m.desktop = d
	return m
}

// Init starts the synchronizer and begins listening for snapshots.
func (m Model) Init() tea.Cmd {
	s, userID := m.sync, m.userID
	return tea.Batch(
		func() tea.Msg {
			return syncStartedMsg{err: s.Start(userID)}
		},
		s.WaitForUpdate(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.inbox.SetSize(contentWidth, contentHeight)
		m.sendForm.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case syncStartedMsg:
		if msg.err != nil {
			m.errMessage = msg.err.Error()
		}
		return m, nil

	case appsync.Snapshot:
		m.snapshot = msg
		if msg.Err != nil {
			m.errMessage = describeError(msg.Err)
		} else if m.errMessage != "" && msg.State == appsync.StateLive {
			m.errMessage = ""
		}
		cmd := m.inbox.SetNotifications(msg.Notifications, msg.Loading)
		return m, tea.Batch(cmd, m.sync.WaitForUpdate())

	case inbox.MarkReadMsg:
		return m, m.markRead(msg.ID)

	case markReadResultMsg:
		if msg.err != nil {
			m.errMessage = describeError(msg.err)
		}
		return m, nil

	case sendform.SubmitMsg:
		m.currentView = ViewInbox
		m.statusMessage = "sending..."
		return m, m.send(msg)

	case sendform.CancelMsg:
		m.currentView = ViewInbox
		return m, nil

	case sendResultMsg:
		switch {
		case msg.err != nil:
			m.statusMessage = ""
			m.errMessage = describeError(msg.err)
		case msg.soft:
			m.statusMessage = "sent (delivery relayed by this client)"
		default:
			m.statusMessage = "sent"
		}
		return m, nil

	case tea.KeyMsg:
		if m.currentView == ViewSend {
			break
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.sync.Stop()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}

		case key.Matches(msg, m.keys.Refresh):
			if m.currentView == ViewInbox {
				m.sync.RequestRefresh()
				return m, nil
			}

		case key.Matches(msg, m.keys.Desktop):
			if m.currentView == ViewInbox && m.desktop != nil {
				m.statusMessage = m.toggleDesktop()
				return m, nil
			}

		case key.Matches(msg, m.keys.Send):
			if m.currentView == ViewInbox {
				m.previousView = m.currentView
				m.currentView = ViewSend
				m.statusMessage = ""
				cmd := m.sendForm.Start()
				return m, cmd
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewInbox:
		m.inbox, cmd = m.inbox.Update(msg)
	case ViewSend:
		m.sendForm, cmd = m.sendForm.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Shipdesk", m.snapshot.UnreadCount, m.syncStatus())
	content := m.renderContent()

	errMsg := ""
	if m.currentView == ViewInbox {
		errMsg = m.errMessage
	}
	statusBar := m.layout.RenderStatusBar(m.keyHints(), errMsg)

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewInbox:
		return m.inbox.View()
	case ViewSend:
		return m.sendForm.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the sync and socket state.
func (m Model) syncStatus() string {
	snap := m.snapshot
	switch snap.State {
	case appsync.StateUnauthenticated, appsync.StateTornDown:
		return "offline"
	}

	conn := theme.ConnectionStyle(snap.Connected).Render("●")
	switch {
	case snap.Loading:
		return conn + " loading"
	case !snap.LastSync.IsZero():
		return fmt.Sprintf("%s synced %s", conn, snap.LastSync.Format("15:04"))
	default:
		return conn + " " + snap.State.String()
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewSend:
		return "enter next/submit | esc cancel"
	default:
		hints := "q quit | ? help | enter read | n send | r refresh | d alerts"
		if m.statusMessage != "" {
			return m.statusMessage + " | " + hints
		}
		return hints
	}
}

// markRead returns a command that marks id as read through the
// synchronizer.
func (m Model) markRead(id string) tea.Cmd {
	s := m.sync
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return markReadResultMsg{id: id, err: s.MarkAsRead(ctx, id)}
	}
}

// send returns a command that sends the submitted draft.
func (m Model) send(msg sendform.SubmitMsg) tea.Cmd {
	s := m.sync
	draft := msg.Draft
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		res, err := s.SendNotification(ctx, draft)
		if err != nil {
			return sendResultMsg{err: err}
		}
		return sendResultMsg{soft: res.Soft}
	}
}

// toggleDesktop flips desktop notifications between granted and denied
// and returns the status line to show.
func (m Model) toggleDesktop() string {
	if m.desktop.Permission() == model.PermissionGranted {
		m.desktop.SetPermission(model.PermissionDenied)
		return "desktop alerts off"
	}
	m.desktop.SetPermission(model.PermissionGranted)
	return "desktop alerts on"
}

// describeError shortens errors for the status bar.
func describeError(err error) string {
	if backend.IsAuthError(err) {
		return "session expired, run 'shipdesk login'"
	}
	return err.Error()
}
