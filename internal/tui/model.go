package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"video-parser/internal/batch"
	"video-parser/pkg/models"
)

const resolveTimeout = 60 * time.Second

// Resolver resolves free-form share text
type Resolver interface {
	Resolve(ctx context.Context, shareText string) (*models.VideoInfo, error)
}

// BatchRunner resolves several share links, typically a *batch.BatchManager
type BatchRunner interface {
	Run(ctx context.Context, urls []string, onProgress batch.ProgressFunc) (*batch.BatchJob, error)
}

// Model represents the main application state
type Model struct {
	state     State
	resolver  Resolver
	batch     BatchRunner
	urlInput  textinput.Model
	batchArea textarea.Model
	spinner   spinner.Model
	table     table.Model
	entries   []Entry
	current   *Entry
	busy      bool
	status    string
	width     int
	height    int
	styles    Styles
}

// State represents different screens/states of the TUI
type State int

const (
	MainMenu State = iota
	ResolveScreen
	BatchScreen
	History
	Help
)

// Entry is one resolution shown in the history table
type Entry struct {
	Input    string
	Info     *models.VideoInfo
	Kind     string
	Err      string
	Duration time.Duration
}

// Status renders the outcome column
func (e Entry) Status() string {
	if e.Err != "" {
		return e.Kind
	}
	if e.Info != nil && e.Info.IsImagePost() {
		return fmt.Sprintf("%d images", len(e.Info.Images))
	}
	return "video"
}

type resolvedMsg struct {
	entry Entry
}

type batchDoneMsg struct {
	job *batch.BatchJob
	err error
}

// Styles holds all the styling for the TUI
type Styles struct {
	title    lipgloss.Style
	subtitle lipgloss.Style
	menuItem lipgloss.Style
	input    lipgloss.Style
	label    lipgloss.Style
	errText  lipgloss.Style
	okText   lipgloss.Style
	table    lipgloss.Style
}

func defaultStyles() Styles {
	return Styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			PaddingTop(1).
			PaddingBottom(1),
		subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			PaddingBottom(1),
		menuItem: lipgloss.NewStyle().
			PaddingLeft(2).
			PaddingRight(2).
			Margin(0, 1),
		input: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		label:   lipgloss.NewStyle().Bold(true).Width(10),
		errText: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")),
		okText:  lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
		table: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")),
	}
}

// InitialModel creates the initial model for the TUI
func InitialModel(resolver Resolver, runner BatchRunner) Model {
	ti := textinput.New()
	ti.Placeholder = "Paste a Douyin share link or share text..."
	ti.Focus()
	ti.CharLimit = 1000
	ti.Width = 60

	ta := textarea.New()
	ta.Placeholder = "One share link per line"
	ta.SetWidth(70)
	ta.SetHeight(8)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	columns := []table.Column{
		{Title: "Input", Width: 36},
		{Title: "Title", Width: 30},
		{Title: "Author", Width: 16},
		{Title: "Result", Width: 22},
		{Title: "Time", Width: 8},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	return Model{
		state:     MainMenu,
		resolver:  resolver,
		batch:     runner,
		urlInput:  ti,
		batchArea: ta,
		spinner:   sp,
		table:     t,
		entries:   []Entry{},
		styles:    defaultStyles(),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case resolvedMsg:
		m.busy = false
		entry := msg.entry
		m.current = &entry
		m.addEntries(entry)
		return m, nil

	case batchDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		for _, r := range msg.job.Results {
			m.addEntries(Entry{Input: r.URL, Info: r.VideoInfo, Kind: r.Kind, Err: r.Error, Duration: r.Duration})
		}
		m.status = fmt.Sprintf("Batch %s: %d items, %d failed", msg.job.Status, msg.job.Progress.Total, msg.job.Progress.Failed)
		m.batchArea.Reset()
		m.state = History
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state == MainMenu {
				return m, tea.Quit
			}

		case "esc":
			if m.state != MainMenu {
				m.state = MainMenu
				m.batchArea.Blur()
				return m, nil
			}

		case "1", "2", "3", "4":
			if m.state == MainMenu {
				return m.selectMenu(msg.String())
			}

		case "enter":
			if m.state == ResolveScreen && !m.busy && strings.TrimSpace(m.urlInput.Value()) != "" {
				text := m.urlInput.Value()
				m.urlInput.SetValue("")
				m.busy = true
				m.current = nil
				return m, tea.Batch(m.spinner.Tick, m.resolve(text))
			}

		case "ctrl+s":
			if m.state == BatchScreen && !m.busy {
				urls := strings.Split(m.batchArea.Value(), "\n")
				m.busy = true
				m.status = ""
				return m, tea.Batch(m.spinner.Tick, m.runBatch(urls))
			}
		}
	}

	// Update components based on current state
	switch m.state {
	case ResolveScreen:
		m.urlInput, cmd = m.urlInput.Update(msg)
	case BatchScreen:
		m.batchArea, cmd = m.batchArea.Update(msg)
	case History:
		m.table, cmd = m.table.Update(msg)
	}

	return m, cmd
}

func (m Model) selectMenu(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "1":
		m.state = ResolveScreen
		return m, textinput.Blink
	case "2":
		m.state = BatchScreen
		return m, m.batchArea.Focus()
	case "3":
		m.state = History
	case "4":
		m.state = Help
	}
	return m, nil
}

// resolve runs one resolution off the UI goroutine
func (m Model) resolve(text string) tea.Cmd {
	resolver := m.resolver
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()

		start := time.Now()
		info, err := resolver.Resolve(ctx, text)
		entry := Entry{Input: strings.TrimSpace(text), Info: info, Duration: time.Since(start)}
		if err != nil {
			entry.Err = err.Error()
			entry.Kind = models.ErrorKind(err)
		}
		return resolvedMsg{entry: entry}
	}
}

func (m Model) runBatch(urls []string) tea.Cmd {
	runner := m.batch
	return func() tea.Msg {
		if runner == nil {
			return batchDoneMsg{err: fmt.Errorf("batch resolution is not available")}
		}
		job, err := runner.Run(context.Background(), urls, nil)
		return batchDoneMsg{job: job, err: err}
	}
}

func (m *Model) addEntries(entries ...Entry) {
	m.entries = append(m.entries, entries...)

	rows := make([]table.Row, 0, len(m.entries))
	for _, e := range m.entries {
		title, author := "", ""
		if e.Info != nil {
			title = e.Info.Title
			author = e.Info.Author.DisplayName
		}
		rows = append(rows, table.Row{
			e.Input,
			title,
			author,
			e.Status(),
			e.Duration.Round(time.Millisecond).String(),
		})
	}
	m.table.SetRows(rows)
}

// Entries returns the resolutions made so far
func (m Model) Entries() []Entry {
	return m.entries
}

// View renders the UI
func (m Model) View() string {
	switch m.state {
	case ResolveScreen:
		return m.renderResolveScreen()
	case BatchScreen:
		return m.renderBatchScreen()
	case History:
		return m.renderHistory()
	case Help:
		return m.renderHelp()
	default:
		return m.renderMainMenu()
	}
}

func (m Model) place(content string) string {
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderMainMenu() string {
	title := m.styles.title.Render("Video Parser")
	subtitle := m.styles.subtitle.Render("Watermark-free media links from Douyin share links")

	menu := []string{
		"1. Resolve a share link",
		"2. Batch resolve",
		"3. History",
		"4. Help",
		"",
		"q. Quit",
	}

	var menuItems []string
	for _, item := range menu {
		if item == "" {
			menuItems = append(menuItems, "")
		} else {
			menuItems = append(menuItems, m.styles.menuItem.Render(item))
		}
	}

	return m.place(lipgloss.JoinVertical(lipgloss.Left,
		title,
		subtitle,
		"",
		strings.Join(menuItems, "\n"),
	))
}

func (m Model) renderResolveScreen() string {
	title := m.styles.title.Render("Resolve a share link")

	parts := []string{
		title,
		m.styles.input.Render(m.urlInput.View()),
		"",
	}

	switch {
	case m.busy:
		parts = append(parts, m.spinner.View()+" Resolving...")
	case m.current != nil:
		parts = append(parts, m.renderEntry(*m.current))
	}

	parts = append(parts, "", "Enter to resolve • ESC to go back")
	return m.place(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) renderEntry(e Entry) string {
	if e.Err != "" {
		return m.styles.errText.Render(fmt.Sprintf("%s: %s", e.Kind, e.Err))
	}

	info := e.Info
	line := func(label, value string) string {
		return m.styles.label.Render(label) + value
	}

	lines := []string{
		m.styles.okText.Render("Resolved in " + e.Duration.Round(time.Millisecond).String()),
		line("Title", info.Title),
		line("Author", info.Author.DisplayName),
		line("Cover", info.CoverURL),
	}
	if info.VideoURL != "" {
		lines = append(lines, line("Video", info.VideoURL))
	}
	for i, img := range info.Images {
		lines = append(lines, line(fmt.Sprintf("Image %d", i+1), img.URL))
		if img.LivePhotoURL != "" {
			lines = append(lines, line("  Live", img.LivePhotoURL))
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderBatchScreen() string {
	title := m.styles.title.Render("Batch resolve")

	parts := []string{title, m.batchArea.View(), ""}
	if m.busy {
		parts = append(parts, m.spinner.View()+" Resolving batch...")
	} else if m.status != "" {
		parts = append(parts, m.styles.errText.Render(m.status))
	}
	parts = append(parts, "", "Ctrl+S to start • ESC to go back")

	return m.place(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) renderHistory() string {
	title := m.styles.title.Render("History")

	parts := []string{title}
	if m.status != "" {
		parts = append(parts, m.styles.subtitle.Render(m.status))
	}
	parts = append(parts, m.styles.table.Render(m.table.View()), "", "↑/↓ to navigate • ESC to go back")

	return m.place(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) renderHelp() string {
	title := m.styles.title.Render("Help")

	helpText := []string{
		"Navigation:",
		"• Use number keys to select menu items",
		"• ESC to go back to main menu",
		"• q (main menu) or Ctrl+C to quit",
		"",
		"Resolving:",
		"• Paste a v.douyin.com short link, a douyin.com video or note link,",
		"  or a whole share message; the first link in it is used",
		"• Image posts list every image with its live photo clip",
	}

	return m.place(lipgloss.JoinVertical(lipgloss.Left,
		title,
		strings.Join(helpText, "\n"),
		"",
		"ESC to go back",
	))
}
