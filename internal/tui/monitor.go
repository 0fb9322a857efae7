package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kelsos/cvat-cli/internal/models"
)

type ItemStage string

const (
	StagePending ItemStage = "pending"
	StageRunning ItemStage = "running"
	StageDone    ItemStage = "done"
)

type ItemState struct {
	Item          string
	Stage         ItemStage
	Result        models.ItemResult
	StartTime     time.Time
	CompletedTime time.Time
}

type Model struct {
	operation string
	items     []*ItemState
	logs      []string
	spinner   spinner.Model
	progress  progress.Model
	width     int
	height    int
	quit      bool
	done      bool
	err       error
	counts    map[models.ItemStatus]int
}

type BatchStarted struct {
	Operation string
	Items     []string
}

type ItemStarted struct {
	Item string
}

type ItemFinished struct {
	Result models.ItemResult
}

type LogMessage struct {
	Message string
}

type BatchDone struct {
	Err error
}

func NewModel() Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	pr := progress.New(progress.WithDefaultGradient())

	return Model{
		items:    []*ItemState{},
		logs:     []string{},
		spinner:  sp,
		progress: pr,
		width:    80,
		height:   24,
		counts:   make(map[models.ItemStatus]int),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.handleKeyMsg(msg) {
			m.quit = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m = m.handleWindowSizeMsg(msg)

	case BatchStarted:
		m = m.handleBatchStarted(msg)

	case ItemStarted:
		m = m.handleItemStarted(msg)

	case ItemFinished:
		m = m.handleItemFinished(msg)

	case LogMessage:
		m = m.handleLogMessage(msg)

	case BatchDone:
		m.done = true
		m.err = msg.Err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		if progressModel, ok := progressModel.(progress.Model); ok {
			m.progress = progressModel
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "q", "ctrl+c":
		return true
	}
	return false
}

func (m Model) handleWindowSizeMsg(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height
	m.progress.Width = max(msg.Width-40, 10)
	return m
}

func (m Model) handleBatchStarted(msg BatchStarted) Model {
	m.operation = msg.Operation
	m.items = make([]*ItemState, 0, len(msg.Items))
	for _, item := range msg.Items {
		m.items = append(m.items, &ItemState{Item: item, Stage: StagePending})
	}
	return m
}

// find returns the first item called name still in stage; item names may repeat
func (m Model) find(name string, stage ItemStage) *ItemState {
	for _, state := range m.items {
		if state.Item == name && state.Stage == stage {
			return state
		}
	}
	return nil
}

func (m Model) handleItemStarted(msg ItemStarted) Model {
	if state := m.find(msg.Item, StagePending); state != nil {
		state.Stage = StageRunning
		state.StartTime = time.Now()
	}
	return m
}

func (m Model) handleItemFinished(msg ItemFinished) Model {
	state := m.find(msg.Result.Item, StageRunning)
	if state == nil {
		return m
	}
	state.Stage = StageDone
	state.Result = msg.Result
	state.CompletedTime = time.Now()
	m.counts[msg.Result.Status]++

	line := fmt.Sprintf("%s %s %s", getStatusIcon(msg.Result.Status), msg.Result.Item, msg.Result.Status)
	if msg.Result.Reason != "" {
		line += ": " + msg.Result.Reason
	}
	if msg.Result.Error != "" {
		line += ": " + msg.Result.Error
	}
	return m.handleLogMessage(LogMessage{Message: line})
}

func (m Model) handleLogMessage(msg LogMessage) Model {
	m.logs = append(m.logs, fmt.Sprintf("[%s] %s",
		time.Now().Format("15:04:05"), msg.Message))
	if len(m.logs) > 10 {
		m.logs = m.logs[len(m.logs)-10:]
	}
	return m
}

// Completed returns the share of items that reached a final status
func (m Model) Completed() float64 {
	if len(m.items) == 0 {
		return 0
	}
	finished := 0
	for _, state := range m.items {
		if state.Stage == StageDone {
			finished++
		}
	}
	return float64(finished) / float64(len(m.items))
}

func (m Model) View() string {
	if m.quit {
		return "Shutting down...\n"
	}

	var s strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		MarginBottom(1)

	title := "CVAT batch monitor"
	if m.operation != "" {
		title += ": " + m.operation
	}
	s.WriteString(headerStyle.Render(title))
	s.WriteString("\n\n")

	summaryStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	summary := fmt.Sprintf("Items: %d | Created: %d | Dumped: %d | Skipped: %d | Failed: %d",
		len(m.items), m.counts[models.ItemCreated], m.counts[models.ItemDumped],
		m.counts[models.ItemSkipped], m.counts[models.ItemFailed])
	s.WriteString(summaryStyle.Render(summary))
	s.WriteString("\n")
	s.WriteString(m.progress.ViewAs(m.Completed()))
	s.WriteString("\n\n")

	itemSectionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1).
		Width(m.width - 2)

	var itemStatus strings.Builder
	itemStatus.WriteString("Items\n")
	itemStatus.WriteString(strings.Repeat("─", 60) + "\n")

	for _, state := range m.visibleItems() {
		icon := "⏸"
		color := "244"
		detail := ""
		switch state.Stage {
		case StageRunning:
			icon = m.spinner.View()
			color = "39"
			detail = time.Since(state.StartTime).Truncate(time.Second).String()
		case StageDone:
			icon = getStatusIcon(state.Result.Status)
			color = getStatusColor(state.Result.Status)
			detail = string(state.Result.Status)
			if state.Result.TaskID != 0 {
				detail += fmt.Sprintf(" #%d", state.Result.TaskID)
			}
		}

		line := fmt.Sprintf("%s %-40s %s", icon, truncate(state.Item, 40), detail)
		itemStatus.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(line) + "\n")
	}

	s.WriteString(itemSectionStyle.Render(itemStatus.String()))
	s.WriteString("\n\n")

	logSectionStyle := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(m.width - 2).
		Height(8)

	var logSection strings.Builder
	logSection.WriteString("Recent Logs\n")
	for _, log := range m.logs {
		logSection.WriteString(log + "\n")
	}

	s.WriteString(logSectionStyle.Render(logSection.String()))
	s.WriteString("\n\n")

	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	footer := "Press 'q' to quit | Logs: logs/cvat-cli_*.log"
	if m.done {
		if m.err != nil {
			footer = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(fmt.Sprintf("Batch stopped: %v", m.err)) + " | " + footer
		} else {
			footer = "Batch finished | " + footer
		}
	}
	s.WriteString(footerStyle.Render(footer))

	return s.String()
}

// visibleItems keeps the item list within the terminal, centred on the running item
func (m Model) visibleItems() []*ItemState {
	limit := max(m.height-22, 5)
	if len(m.items) <= limit {
		return m.items
	}

	current := 0
	for i, state := range m.items {
		if state.Stage != StageDone {
			current = i
			break
		}
		current = i
	}

	start := max(current-limit/2, 0)
	end := min(start+limit, len(m.items))
	return m.items[max(end-limit, 0):end]
}

func getStatusIcon(status models.ItemStatus) string {
	switch status {
	case models.ItemCreated, models.ItemDumped:
		return "✅"
	case models.ItemSkipped:
		return "⏭"
	case models.ItemFailed:
		return "❌"
	default:
		return "❓"
	}
}

func getStatusColor(status models.ItemStatus) string {
	switch status {
	case models.ItemFailed:
		return "196"
	case models.ItemSkipped:
		return "244"
	default:
		return "82"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
