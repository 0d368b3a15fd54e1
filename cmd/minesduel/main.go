// Command minesduel is a terminal lobby for a single match. It polls the
// match state, shows both seats and lets a seated player toggle ready.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jessevdk/go-flags"

	"github.com/icco/minesduel"
	"github.com/icco/minesduel/match"
)

type options struct {
	Server   string        `short:"s" long:"server" env:"MINESDUEL_SERVER" default:"http://localhost:8080" description:"Server base URL"`
	Match    int64         `short:"m" long:"match" description:"Match id" required:"true"`
	Token    string        `short:"t" long:"token" env:"MINESDUEL_TOKEN" description:"Player token, enables the ready toggle"`
	Name     string        `short:"n" long:"name" description:"Your player name, highlighted in the seat list"`
	Interval time.Duration `short:"i" long:"interval" default:"1s" description:"Poll interval"`
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	infoStyle = lipgloss.NewStyle().
			MarginLeft(2)

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			MarginLeft(2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true).
			MarginLeft(2)

	statusStyles = map[minesduel.Status]lipgloss.Style{
		minesduel.StatusPending:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		minesduel.StatusActive:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		minesduel.StatusFinished: lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Bold(true),
	}
)

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	p := tea.NewProgram(newModel(newClient(opts.Server), opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatal(err)
	}
}

type keyMap struct {
	Ready key.Binding
	Quit  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Ready, k.Quit} }
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

type model struct {
	api  *client
	opts options
	keys keyMap

	spinner spinner.Model
	seats   table.Model
	help    help.Model

	state *match.MatchState
	ready bool
	now   time.Time
	err   error
}

func newModel(api *client, opts options) model {
	keys := keyMap{
		Ready: key.NewBinding(key.WithKeys("r", " "), key.WithHelp("r", "toggle ready")),
		Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
	keys.Ready.SetEnabled(opts.Token != "")

	seats := table.New(
		table.WithColumns([]table.Column{
			{Title: "PLAYER", Width: 20},
			{Title: "READY", Width: 6},
			{Title: "STEPS", Width: 6},
			{Title: "RESULT", Width: 8},
			{Title: "TIME", Width: 8},
		}),
		table.WithHeight(2),
		table.WithFocused(false),
	)

	return model{
		api:     api,
		opts:    opts,
		keys:    keys,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		seats:   seats,
		help:    help.New(),
		now:     time.Now(),
	}
}

type stateMsg struct{ state *match.MatchState }
type readyMsg struct {
	state *match.ReadyState
	ready bool
}
type errMsg struct{ err error }
type tickMsg time.Time

func (m model) fetch() tea.Msg {
	st, err := m.api.state(context.Background(), m.opts.Match)
	if err != nil {
		return errMsg{err}
	}
	return stateMsg{st}
}

func (m model) toggleReady() tea.Cmd {
	want := !m.ready
	return func() tea.Msg {
		st, err := m.api.setReady(context.Background(), m.opts.Match, m.opts.Token, want)
		if err != nil {
			return errMsg{err}
		}
		return readyMsg{st, want}
	}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.opts.Interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch, m.tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Ready):
			if m.state != nil && m.state.Status == minesduel.StatusPending {
				return m, m.toggleReady()
			}
		}
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		if m.state != nil && m.state.Status == minesduel.StatusFinished {
			return m, nil
		}
		return m, tea.Batch(m.fetch, m.tick())

	case stateMsg:
		m.state = msg.state
		m.err = nil
		m.seats.SetRows(seatRows(msg.state))
		for _, p := range msg.state.Players {
			if m.opts.Name != "" && p.Name == m.opts.Name {
				m.ready = p.Ready
			}
		}
		return m, nil

	case readyMsg:
		m.ready = msg.ready
		m.err = nil
		if m.state != nil {
			m.state.Status = msg.state.Status
			m.state.StartedAt = msg.state.StartedAt
		}
		return m, m.fetch

	case errMsg:
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func seatRows(st *match.MatchState) []table.Row {
	rows := make([]table.Row, 0, len(st.Players))
	for _, p := range st.Players {
		ready := "no"
		if p.Ready {
			ready = "yes"
		}
		result, took := "-", "-"
		if p.Result != nil {
			result = string(*p.Result)
		}
		if p.DurationMs != nil {
			took = (time.Duration(*p.DurationMs) * time.Millisecond).Round(100 * time.Millisecond).String()
		}
		rows = append(rows, table.Row{p.Name, ready, strconv.Itoa(p.StepsCount), result, took})
	}
	return rows
}

// countdown describes the time left until the match starts or runs out.
func countdown(st *match.MatchState, now time.Time) string {
	if st.StartedAt == nil {
		return "waiting for both players"
	}
	if now.Before(*st.StartedAt) {
		return fmt.Sprintf("starts in %s", st.StartedAt.Sub(now).Round(time.Second))
	}
	if st.Status == minesduel.StatusFinished || st.CountdownSecs <= 0 {
		return ""
	}
	left := st.StartedAt.Add(time.Duration(st.CountdownSecs) * time.Second).Sub(now)
	if left < 0 {
		left = 0
	}
	return fmt.Sprintf("%s left", left.Round(time.Second))
}

func (m model) View() string {
	title := titleStyle.Render(fmt.Sprintf("minesduel · match %d", m.opts.Match))

	if m.state == nil {
		body := infoStyle.Render(m.spinner.View() + " loading match")
		if m.err != nil {
			body = errorStyle.Render("error: " + m.err.Error())
		}
		return lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", infoStyle.Render(m.help.View(m.keys)))
	}

	st := m.state
	status := statusStyles[st.Status].Render(string(st.Status))
	info := infoStyle.Render(fmt.Sprintf("%s  %dx%d, %d mines  %s",
		status, st.Board.Width, st.Board.Height, st.Board.Mines, countdown(st, m.now)))

	content := []string{title, "", info, "", boxStyle.Render(m.seats.View())}
	if m.opts.Token != "" {
		content = append(content, "", infoStyle.Render(fmt.Sprintf("you are ready: %t", m.ready)))
	}
	if m.err != nil {
		content = append(content, "", errorStyle.Render("error: "+m.err.Error()))
	}
	content = append(content, "", infoStyle.Render(m.help.View(m.keys)))

	return lipgloss.JoinVertical(lipgloss.Left, content...)
}
