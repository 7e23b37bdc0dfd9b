package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"jiffy/host/tap"
	"jiffy/protocol"
)

const refreshEvery = 250 * time.Millisecond

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	eventStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	endedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type refreshMsg struct{}

type eventMsg struct {
	ev any
}

type streamDoneMsg struct{}

type tuiModel struct {
	reader    *tap.Reader
	table     table.Model
	snap      tap.Table
	lastEvent string
	ended     bool
}

func newTUIModel(reader *tap.Reader) *tuiModel {
	columns := []table.Column{
		{Title: "TOK", Width: 4},
		{Title: "NAME", Width: 16},
		{Title: "FLAGS", Width: 5},
		{Title: "FIRES", Width: 10},
		{Title: "LATE", Width: 8},
		{Title: "SEEN", Width: 10},
		{Title: "LAST TICK", Width: 12},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true)
	t.SetStyles(styles)

	return &tuiModel{reader: reader, table: t}
}

func (m *tuiModel) Init() tea.Cmd {
	return tea.Batch(m.scheduleRefresh(), m.waitEvent)
}

func (m *tuiModel) scheduleRefresh() tea.Cmd {
	return tea.Tick(refreshEvery, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}

// waitEvent blocks on the reader's event stream so the view updates the
// moment a frame lands, not just on the refresh tick.
func (m *tuiModel) waitEvent() tea.Msg {
	select {
	case ev := <-m.reader.Events():
		return eventMsg{ev: ev}
	case <-m.reader.Done():
		return streamDoneMsg{}
	}
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case refreshMsg:
		m.snap = m.reader.Snapshot()
		m.table.SetRows(buildRows(m.snap))
		return m, m.scheduleRefresh()

	case eventMsg:
		m.lastEvent = eventLine(msg.ev)
		return m, m.waitEvent

	case streamDoneMsg:
		m.ended = true
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *tuiModel) View() string {
	s := titleStyle.Render("jiffyscope") + "\n\n"

	hz := "hz=?"
	if m.snap.Hz != 0 {
		hz = fmt.Sprintf("hz=%d", m.snap.Hz)
	}
	s += statusStyle.Render(fmt.Sprintf("%s frames=%d crc=%d resyncs=%d decode=%d",
		hz, m.snap.Frames, m.snap.CRCErrors, m.snap.Resyncs, m.snap.DecodeErrors)) + "\n\n"

	s += m.table.View() + "\n\n"

	if len(m.snap.Marks) > 0 {
		last := m.snap.Marks[len(m.snap.Marks)-1]
		s += eventStyle.Render(fmt.Sprintf("mark @%d: %s", last.Tick, last.Text)) + "\n"
	}
	if m.lastEvent != "" {
		s += eventStyle.Render("last: "+m.lastEvent) + "\n"
	}
	if m.ended {
		s += endedStyle.Render("stream ended") + "\n"
	}

	s += "\n" + helpStyle.Render("↑/↓ scroll • q quit")
	return s
}

func buildRows(snap tap.Table) []table.Row {
	rows := make([]table.Row, 0, len(snap.Timers))
	for _, r := range snap.Timers {
		rows = append(rows, table.Row{
			strconv.Itoa(int(r.Token)),
			rowName(r),
			flagLetters(r.Flags),
			strconv.FormatUint(uint64(r.Fires), 10),
			strconv.FormatUint(uint64(r.Late), 10),
			strconv.FormatUint(uint64(r.SeenFires), 10),
			strconv.FormatUint(uint64(r.LastTick), 10),
		})
	}
	return rows
}

func eventLine(ev any) string {
	switch v := ev.(type) {
	case protocol.FireReport:
		return fmt.Sprintf("fire tok=%d tick=%d wake=%d", v.Token, v.Tick, v.Wake)
	case protocol.StatsReport:
		return fmt.Sprintf("stats tok=%d fires=%d late=%d", v.Token, v.Fires, v.Late)
	case protocol.DictEntry:
		return fmt.Sprintf("dict tok=%d name=%s", v.Token, v.Name)
	case protocol.MarkReport:
		return fmt.Sprintf("mark @%d %q", v.Tick, v.Text)
	}
	return ""
}

func runTUI(reader *tap.Reader) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("the table view needs a terminal; use the console instead")
	}

	p := tea.NewProgram(newTUIModel(reader), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
