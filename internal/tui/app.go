// Package tui is the operator console. It renders presentation.View and turns key presses into
// workflow intents; it never decides what is allowed, the projection does.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ReportDesk/internal/domain"
	"ReportDesk/internal/presentation"
	"ReportDesk/internal/report"
	"ReportDesk/internal/usecase"
)

const (
	maxLogLines  = 8
	sidebarWidth = 38
)

// Controller is the subset of the workflow the console drives.
type Controller interface {
	Fetch(ctx context.Context) error
	Generate(ctx context.Context) error
	SendToPrimary(ctx context.Context) error
	ApproveAndSendAll(ctx context.Context) error
	Reset()
	DismissError()
	Subscribe() (<-chan domain.WorkflowState, func())
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	enabledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
	toastStyle    = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("#FF6B6B")).Padding(0, 1)
)

type stateMsg struct {
	state domain.WorkflowState
	ok    bool
}

type opDoneMsg struct {
	action presentation.Action
	err    error
}

// Model is the bubbletea model of the console.
type Model struct {
	ctx         context.Context
	ctrl        Controller
	dir         presentation.Directory
	updates     <-chan domain.WorkflowState
	unsubscribe func()

	state   domain.WorkflowState
	view    presentation.View
	status  string
	spinner spinner.Model
	preview viewport.Model
	width   int
	height  int
}

// New subscribes to ctrl and builds the initial view.
func New(ctx context.Context, ctrl Controller, dir presentation.Directory) *Model {
	updates, unsubscribe := ctrl.Subscribe()
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = hintStyle
	m := &Model{
		ctx:         ctx,
		ctrl:        ctrl,
		dir:         dir,
		updates:     updates,
		unsubscribe: unsubscribe,
		state:       domain.InitialState(),
		spinner:     sp,
		preview:     viewport.New(80, 20),
	}
	m.refresh()
	return m
}

// Init starts the state listener and the spinner.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForState(), m.spinner.Tick)
}

func (m *Model) waitForState() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		state, ok := <-updates
		return stateMsg{state: state, ok: ok}
	}
}

// Update handles input, state changes and operation results.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		if !msg.ok {
			return m, nil
		}
		m.state = msg.state
		m.refresh()
		return m, m.waitForState()
	case opDoneMsg:
		switch {
		case msg.err == nil:
			m.status = ""
		case errors.Is(msg.err, usecase.ErrTransitionRejected):
			m.status = "目前狀態無法執行此操作。"
		case errors.Is(msg.err, usecase.ErrStaleResult):
			m.status = "流程已重置，結果已捨棄。"
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.preview.Width = max(20, msg.Width-sidebarWidth-6)
		m.preview.Height = max(5, msg.Height-maxLogLines-8)
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		if m.unsubscribe != nil {
			m.unsubscribe()
			m.unsubscribe = nil
		}
		return m, tea.Quit
	case "f":
		return m, m.dispatch(m.view.Steps[0])
	case "g":
		return m, m.dispatch(m.view.Steps[1])
	case "s", "a":
		return m, m.dispatch(m.view.Steps[2])
	case "enter":
		if m.view.Error != nil && m.view.Error.RetryAction != presentation.ActionNone {
			return m, m.run(m.view.Error.RetryAction)
		}
		return m, nil
	case "r":
		return m, m.run(presentation.ActionReset)
	case "x", "esc":
		if m.view.Toast != nil {
			return m, m.run(presentation.ActionDismissError)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.preview, cmd = m.preview.Update(msg)
	return m, cmd
}

func (m *Model) dispatch(step presentation.Step) tea.Cmd {
	if !step.Enabled || step.Action == presentation.ActionNone {
		return nil
	}
	return m.run(step.Action)
}

func (m *Model) run(action presentation.Action) tea.Cmd {
	var op func(context.Context) error
	switch action {
	case presentation.ActionFetch:
		op = m.ctrl.Fetch
	case presentation.ActionGenerate:
		op = m.ctrl.Generate
	case presentation.ActionSendToPrimary:
		op = m.ctrl.SendToPrimary
	case presentation.ActionApproveAll:
		op = m.ctrl.ApproveAndSendAll
	case presentation.ActionReset:
		m.ctrl.Reset()
		m.status = ""
		return nil
	case presentation.ActionDismissError:
		m.ctrl.DismissError()
		return nil
	default:
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{action: action, err: op(ctx)}
	}
}

func (m *Model) refresh() {
	m.view = presentation.Project(m.state, m.dir)
	switch m.view.Panel {
	case presentation.PanelPreview:
		p := m.view.Preview
		header := fmt.Sprintf("寄件者: %s\n主旨: %s\n%s %s\n", p.Sender, p.Subject, p.RecipientLabel, p.RecipientValue)
		m.preview.SetContent(header + "\n" + report.PlainText(p.HTML))
	case presentation.PanelError:
		e := m.view.Error
		lines := []string{failedStyle.Render(e.Title), e.Message}
		if e.CredentialHint != "" {
			lines = append(lines, "", hintStyle.Render(e.CredentialHint))
		}
		if e.RetryLabel != "" {
			lines = append(lines, "", mutedStyle.Render("[enter] "+e.RetryLabel))
		}
		m.preview.SetContent(strings.Join(lines, "\n"))
	default:
		ph := m.view.Placeholder
		m.preview.SetContent(titleStyle.Render(ph.Title) + "\n" + mutedStyle.Render(ph.Hint))
	}
}

// View renders the console.
func (m *Model) View() string {
	left := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("基金市場報告工作台"),
		"",
		m.renderSteps(),
		"",
		m.renderRoster(),
	)
	leftBox := boxStyle.Width(sidebarWidth).Render(left)
	rightBox := boxStyle.Render(m.preview.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, leftBox, rightBox)

	parts := []string{body, boxStyle.Render(m.renderLog())}
	if t := m.view.Toast; t != nil {
		parts = append(parts, toastStyle.Render(failedStyle.Render(t.Title)+"  "+t.Message+mutedStyle.Render("  [x] 關閉")))
	}
	if m.status != "" {
		parts = append(parts, hintStyle.Render(m.status))
	}
	parts = append(parts, mutedStyle.Render("[f] 抓取  [g] 生成  [s/a] 審核與分發  [r] 重置  [x] 關閉錯誤  [↑/↓] 捲動  [q] 離開"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) renderSteps() string {
	keys := [3]string{"f", "g", "s"}
	if m.view.Steps[2].Action == presentation.ActionApproveAll {
		keys[2] = "a"
	}
	var lines []string
	for i, step := range m.view.Steps {
		title := step.Title
		switch step.Badge {
		case presentation.BadgeDone:
			title += " " + doneStyle.Render(step.BadgeText)
		case presentation.BadgeFailed:
			title += " " + failedStyle.Render(step.BadgeText)
		}
		lines = append(lines, title)

		label := step.Label
		if step.Active && m.view.Busy {
			label = m.spinner.View() + " " + label
		}
		if label != "" {
			if step.Enabled {
				lines = append(lines, enabledStyle.Render(fmt.Sprintf("  [%s] %s", keys[i], label)))
			} else {
				lines = append(lines, disabledStyle.Render("      "+label))
			}
		}
		if step.Hint != "" {
			lines = append(lines, hintStyle.Render("  "+step.Hint))
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderRoster() string {
	lines := []string{titleStyle.Render("收件人名單")}
	for _, r := range m.view.Roster {
		role := mutedStyle.Render(r.Role)
		if r.Primary {
			role = hintStyle.Render(r.Role)
		}
		lines = append(lines, fmt.Sprintf("(%s) %s %s", r.Initial, r.Name, role), mutedStyle.Render("    "+r.Email))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderLog() string {
	lines := []string{titleStyle.Render("活動日誌")}
	if len(m.view.Log) == 0 {
		return strings.Join(append(lines, mutedStyle.Render(m.view.LogEmpty)), "\n")
	}
	shown := m.view.Log
	if len(shown) > maxLogLines {
		shown = shown[:maxLogLines]
	}
	return strings.Join(append(lines, shown...), "\n")
}
