package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tidx/internal/services"
	"github.com/desertthunder/tidx/internal/shared"
)

// DeviceAuthorizer starts and polls a device login. Implemented by [services.TokenManager].
type DeviceAuthorizer interface {
	BeginDeviceLogin(ctx context.Context, userID int64) (*services.DeviceLogin, error)
	PollLogin(ctx context.Context, userID int64) (services.LoginStatus, error)
}

// LoginModel walks the user through a TIDAL device login, polling once per provider interval.
type LoginModel struct {
	ctx     context.Context
	auth    DeviceAuthorizer
	userID  int64
	login   *services.DeviceLogin
	status  services.LoginStatus
	warning error
	err     error
	spinner spinner.Model
	help    help.Model
	keys    keyMap
	open    func(string) error
}

// NewLoginModel creates a device login view for userID.
func NewLoginModel(ctx context.Context, auth DeviceAuthorizer, userID int64) *LoginModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()
	return &LoginModel{
		ctx:     ctx,
		auth:    auth,
		userID:  userID,
		spinner: s,
		help:    help.New(),
		keys:    newKeyMap(),
		open:    shared.OpenBrowser,
	}
}

// Authenticated reports whether the login completed.
func (m *LoginModel) Authenticated() bool {
	return m.status == services.LoginAuthenticated
}

// Err returns the error that ended the login, if any.
func (m *LoginModel) Err() error {
	return m.err
}

// Init starts the device authorization.
func (m *LoginModel) Init() tea.Cmd {
	return tea.Batch(m.begin(), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *LoginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.open) && m.login != nil:
			if err := m.open(m.login.VerificationURL); err != nil {
				m.warning = err
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handle(msg)
	}
	return m, nil
}

func (m *LoginModel) handle(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgLoginStarted:
		data := msg.data.(loginStarted)
		if data.err != nil {
			m.err = data.err
			m.status = services.LoginFailed
			return m, tea.Quit
		}
		m.login = data.login
		return m, m.wait()

	case MsgPollTick:
		return m, m.poll()

	case MsgLoginPolled:
		data := msg.data.(loginPolled)
		m.status = data.status
		switch data.status {
		case services.LoginAuthenticated:
			return m, tea.Quit
		case services.LoginFailed:
			m.err = data.err
			return m, tea.Quit
		}
		if data.err != nil && errors.Is(data.err, shared.ErrRemoteUnavailable) {
			m.warning = data.err
		} else {
			m.warning = nil
		}
		return m, m.wait()
	}
	return m, nil
}

func (m *LoginModel) begin() tea.Cmd {
	return func() tea.Msg {
		login, err := m.auth.BeginDeviceLogin(m.ctx, m.userID)
		return loginStartedMsg(login, err)
	}
}

func (m *LoginModel) poll() tea.Cmd {
	return func() tea.Msg {
		status, err := m.auth.PollLogin(m.ctx, m.userID)
		return loginPolledMsg(status, err)
	}
}

func (m *LoginModel) wait() tea.Cmd {
	interval := 5 * time.Second
	if m.login != nil && m.login.Interval > 0 {
		interval = m.login.Interval
	}
	return tea.Tick(interval, func(time.Time) tea.Msg { return pollTickMsg() })
}

// View renders the verification URL, the user code and the poll state.
func (m *LoginModel) View() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Connect tidx to TIDAL"))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(styles.err.Render(fmt.Sprintf("✗ Login failed: %v", m.err)))
		b.WriteString("\n")
		return b.String()
	case m.Authenticated():
		b.WriteString(styles.ok.Render("✓ Connected"))
		b.WriteString("\n")
		return b.String()
	case m.login == nil:
		fmt.Fprintf(&b, "%s Requesting a device code...\n", m.spinner.View())
		return b.String()
	}

	fmt.Fprintf(&b, "Open %s and enter the code:\n\n", m.login.VerificationURL)
	b.WriteString(styles.code.Render(m.login.UserCode))
	b.WriteString("\n\n")

	remaining := time.Until(m.login.ExpiresAt).Round(time.Second)
	if remaining < 0 {
		remaining = 0
	}
	fmt.Fprintf(&b, "%s Waiting for approval (expires in %s)\n", m.spinner.View(), remaining)
	if m.warning != nil {
		b.WriteString(styles.warn.Render(fmt.Sprintf("⚠ %v", m.warning)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.open, m.keys.quit}))
	return b.String()
}
