package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trendcast/internal/advisor"
	"trendcast/internal/domain"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	lookupTimeout = 30 * time.Second
	maxEntries    = 50

	// header, status, input and help lines
	chromeLines = 4
)

const helpLine = "SYMBOL or company: quote + forecast   !SYMBOL: recommendation   ?question: ask   esc: quit"

var errAdvisorOff = errors.New("the advisor is not configured")

// resultMsg carries one finished lookup.
type resultMsg struct {
	query string
	body  string
	err   error
}

type Model struct {
	svc      Services
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	entries  []string
	loading  bool
	width    int
	height   int
}

func NewModel(svc Services) Model {
	ti := textinput.New()
	ti.Placeholder = "AAPL, microsoft, !NVDA or ?what about tesla"
	ti.CharLimit = 200
	ti.Prompt = "> "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		svc:      svc,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
	}
	m.viewport.SetContent(dimStyle.Render("Type a ticker and press enter."))
	return m
}

// SetSize fits the layout to the terminal.
func (m *Model) SetSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width, m.height = width, height
	m.viewport.Width = width
	m.viewport.Height = max(height-chromeLines, 3)
	m.input.Width = max(width-4, 10)
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			query := strings.TrimSpace(m.input.Value())
			if query == "" || m.loading {
				return m, nil
			}
			m.input.Reset()
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, m.lookup(query))
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case resultMsg:
		m.loading = false
		entry := queryStyle.Render("> " + msg.query)
		if msg.err != nil {
			entry += "\n" + errorStyle.Render(msg.err.Error())
		} else {
			entry += "\n" + msg.body
		}
		m.entries = append(m.entries, entry)
		if len(m.entries) > maxEntries {
			m.entries = m.entries[len(m.entries)-maxEntries:]
		}
		m.viewport.SetContent(strings.Join(m.entries, "\n\n"))
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	header := titleStyle.Render("trendcast")
	if m.svc.Username != "" {
		header += " " + dimStyle.Render(m.svc.Username)
	}
	status := ""
	if m.loading {
		status = m.spinner.View() + " fetching..."
	}
	return strings.Join([]string{
		header,
		m.viewport.View(),
		status,
		m.input.View(),
		dimStyle.Render(helpLine),
	}, "\n")
}

// lookup runs off the update loop. The query prefix picks the action.
func (m Model) lookup(query string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
		defer cancel()

		body, err := run(ctx, svc, query)
		return resultMsg{query: query, body: body, err: err}
	}
}

func run(ctx context.Context, svc Services, query string) (string, error) {
	switch {
	case strings.HasPrefix(query, "?"):
		question := strings.TrimSpace(strings.TrimPrefix(query, "?"))
		if question == "" {
			return "", errors.New("ask a question after the ?")
		}
		if svc.Advisor == nil || !svc.Advisor.Available() {
			return "", errAdvisorOff
		}
		return svc.Advisor.Ask(ctx, svc.SessionID, question)

	case strings.HasPrefix(query, "!"):
		if svc.Advisor == nil {
			return "", errAdvisorOff
		}
		symbol, err := resolve(strings.TrimPrefix(query, "!"))
		if err != nil {
			return "", err
		}
		rec, err := svc.Advisor.Recommend(ctx, symbol)
		if err != nil {
			return "", err
		}
		return renderRecommendation(rec), nil
	}

	symbol, err := resolve(query)
	if err != nil {
		return "", err
	}
	q, err := svc.Quotes.GetQuote(ctx, symbol)
	if err != nil {
		return "", fmt.Errorf("quote %s: %w", symbol, err)
	}
	out := renderQuote(q)
	if svc.Forecasts != nil {
		f, err := svc.Forecasts.Forecast(ctx, symbol)
		if err != nil {
			out += "\n" + errorStyle.Render("forecast unavailable: "+err.Error())
		} else {
			out += "\n" + renderForecast(f)
		}
	}
	return out, nil
}

func resolve(input string) (string, error) {
	symbol := advisor.ResolveTicker(input)
	if !domain.IsValidTicker(symbol) {
		return "", fmt.Errorf("%q is not a ticker or known company", strings.TrimSpace(input))
	}
	return symbol, nil
}
