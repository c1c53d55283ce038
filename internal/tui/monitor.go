// Package tui renders a live execution monitor for a task batch using
// Bubble Tea. It mirrors the loop through its event interface and routes
// confirmation prompts through the program as key presses.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/seanpoyner/ollama-code/internal/confirm"
	"github.com/seanpoyner/ollama-code/internal/loop"
	"github.com/seanpoyner/ollama-code/internal/task"
	"github.com/seanpoyner/ollama-code/internal/validate"
)

// runState represents the current state of the monitor.
type runState int

const (
	statePlanning runState = iota
	stateRunning
	stateCancelling
	stateDone
)

// taskRow holds display information for one task in the batch.
type taskRow struct {
	Title  string
	Status string // "pending", "running", "completed", "failed", "cancelled"
}

// outputTailLines bounds how much execution output the monitor retains.
const outputTailLines = 200

// Messages sent by the loop event relay.

// planReadyMsg is sent when planning produced a batch.
type planReadyMsg struct {
	Explanation string
	Tasks       []task.Task
}

// phaseMsg reports a loop state transition.
type phaseMsg struct {
	Phase loop.State
}

// taskStartedMsg is sent when a task attempt begins.
type taskStartedMsg struct {
	TaskNum int
	Total   int
	Title   string
	Attempt int
	Max     int
}

// taskCompletedMsg is sent when a task passes validation.
type taskCompletedMsg struct {
	Title string
}

// taskRetriedMsg is sent when a task attempt fails validation.
type taskRetriedMsg struct {
	Title   string
	Reason  validate.Reason
	Attempt int
}

// taskAbandonedMsg is sent when a task runs out of retries or is cancelled.
type taskAbandonedMsg struct {
	Title  string
	Reason string
}

// outputLineMsg carries one line of execution output.
type outputLineMsg struct {
	Line string
}

// askMsg carries a pending confirmation prompt into the view.
type askMsg struct {
	prompt *promptState
}

// doneMsg signals that the batch finished and the program should exit.
type doneMsg struct{}

// tickMsg drives the elapsed-time display.
type tickMsg time.Time

// promptState is a confirmation waiting for a key press. The reply
// channel is buffered so answering never blocks the update loop.
type promptState struct {
	req   confirm.Request
	reply chan confirm.Decision
}

// Model is the Bubble Tea model for the execution monitor.
type Model struct {
	state       runState
	request     string
	explanation string
	tasks       []taskRow
	currentTask int
	totalTasks  int
	attempt     int
	maxAttempts int
	phase       loop.State
	startTime   time.Time

	spinner spinner.Model
	output  []string
	prompt  *promptState

	cancel func()

	width  int
	height int
}

func newModel(request string, cancel func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = selectedStyle

	return Model{
		state:     statePlanning,
		request:   request,
		phase:     loop.StatePlanning,
		startTime: time.Now(),
		spinner:   s,
		cancel:    cancel,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if m.state == stateDone {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		if m.state == stateDone {
			return m, nil
		}
		return m, tickCmd()

	case planReadyMsg:
		m.state = stateRunning
		m.explanation = msg.Explanation
		m.tasks = make([]taskRow, len(msg.Tasks))
		for i, t := range msg.Tasks {
			m.tasks[i] = taskRow{Title: clipTitle(t.Content), Status: "pending"}
		}
		m.totalTasks = len(msg.Tasks)
		return m, nil

	case phaseMsg:
		m.phase = msg.Phase
		return m, nil

	case taskStartedMsg:
		m.currentTask = msg.TaskNum
		m.attempt = msg.Attempt
		m.maxAttempts = msg.Max
		if msg.TaskNum > 0 && msg.TaskNum <= len(m.tasks) {
			m.tasks[msg.TaskNum-1].Status = "running"
		}
		return m, nil

	case taskCompletedMsg:
		m.markRunning("completed")
		return m, nil

	case taskRetriedMsg:
		m.addOutput(fmt.Sprintf("validation failed (%s), retrying (attempt %d)", msg.Reason, msg.Attempt))
		return m, nil

	case taskAbandonedMsg:
		if msg.Reason == "cancelled by user" {
			m.markRunning("cancelled")
		} else {
			m.markRunning("failed")
		}
		m.addOutput(fmt.Sprintf("task abandoned: %s", msg.Reason))
		return m, nil

	case outputLineMsg:
		m.addOutput(msg.Line)
		return m, nil

	case askMsg:
		m.prompt = msg.prompt
		return m, nil

	case doneMsg:
		m.state = stateDone
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (Model, tea.Cmd) {
	// A pending confirmation swallows the answer keys.
	if m.prompt != nil {
		switch msg.String() {
		case "y", "Y", "enter":
			m.answer(confirm.Approve)
			return m, nil
		case "a", "A":
			m.answer(confirm.ApproveAll)
			return m, nil
		case "n", "N", "esc":
			m.answer(confirm.Deny)
			return m, nil
		case "ctrl+c":
			m.answer(confirm.Deny)
			return m, nil
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c":
		if m.state == statePlanning || m.state == stateRunning {
			m.state = stateCancelling
			if m.cancel != nil {
				m.cancel()
				m.cancel = nil
			}
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) answer(d confirm.Decision) {
	if m.prompt == nil {
		return
	}
	m.prompt.reply <- d
	m.prompt = nil
}

func (m *Model) markRunning(status string) {
	for i := range m.tasks {
		if m.tasks[i].Status == "running" {
			m.tasks[i].Status = status
			return
		}
	}
}

func (m *Model) addOutput(line string) {
	m.output = append(m.output, line)
	if len(m.output) > outputTailLines {
		m.output = m.output[len(m.output)-outputTailLines:]
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ollama-code"))
	b.WriteString(subtleStyle.Render("  " + clipTitle(m.request)))
	b.WriteString("\n\n")

	switch m.state {
	case statePlanning:
		b.WriteString(m.spinner.View())
		b.WriteString(" Planning tasks...\n")
	case stateRunning, stateCancelling, stateDone:
		m.renderTasks(&b)
		b.WriteString("\n")
		b.WriteString(m.statusLine())
		b.WriteString("\n")
	}

	if tail := m.renderOutput(); tail != "" {
		b.WriteString(tail)
		b.WriteString("\n")
	}

	if m.prompt != nil {
		b.WriteString(promptStyle.Render(promptQuestion(m.prompt.req)))
		b.WriteString("\n")
	} else if m.state == stateCancelling {
		b.WriteString(errorStyle.Render("Stopping after the current task..."))
		b.WriteString("\n")
	} else if m.state == stateRunning {
		b.WriteString(subtleStyle.Render("ctrl+c to stop"))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderTasks(b *strings.Builder) {
	for i, t := range m.tasks {
		var icon, line string
		switch t.Status {
		case "completed":
			icon = successStyle.Render("✓")
		case "failed":
			icon = errorStyle.Render("✗")
		case "cancelled":
			icon = subtleStyle.Render("–")
		case "running":
			icon = m.spinner.View()
		default:
			icon = subtleStyle.Render("•")
		}
		line = fmt.Sprintf(" %s %d. %s", icon, i+1, t.Title)
		if t.Status == "running" {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func (m Model) statusLine() string {
	elapsed := time.Since(m.startTime).Round(time.Second)
	if m.currentTask == 0 {
		return subtleStyle.Render(fmt.Sprintf(" %s │ %s", m.phase, elapsed))
	}
	return subtleStyle.Render(fmt.Sprintf(" Task %d/%d │ Attempt %d/%d │ %s │ %s",
		m.currentTask, m.totalTasks, m.attempt, m.maxAttempts, m.phase, elapsed))
}

func (m Model) renderOutput() string {
	if len(m.output) == 0 {
		return ""
	}
	visible := 8
	if m.height > 0 && m.height-len(m.tasks)-8 < visible {
		visible = m.height - len(m.tasks) - 8
	}
	if visible < 1 {
		return ""
	}
	lines := m.output
	if len(lines) > visible {
		lines = lines[len(lines)-visible:]
	}
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	clipped := make([]string, len(lines))
	for i, l := range lines {
		clipped[i] = clipTo(l, width)
	}
	return outputBoxStyle.Render(strings.Join(clipped, "\n"))
}

func promptQuestion(req confirm.Request) string {
	switch req.Kind {
	case confirm.KindFileWrite:
		return fmt.Sprintf("Write file %s? [y]es / [n]o / [a]ll", req.Payload)
	case confirm.KindShellCommand:
		return fmt.Sprintf("Run command: %s  [y]es / [n]o / [a]ll", clipTitle(req.Payload))
	case confirm.KindCancelTasks:
		return fmt.Sprintf("%s [y]es / [n]o", req.Payload)
	}
	return fmt.Sprintf("%s [y]es / [n]o", req.Payload)
}

func clipTitle(s string) string {
	return clipTo(strings.SplitN(s, "\n", 2)[0], 70)
}

func clipTo(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
