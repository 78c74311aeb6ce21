package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/jaskledger/internal/service"
)

// Previewer lists the rows that applying the active rules would touch.
type Previewer interface {
	Preview(ctx context.Context, accountID string) ([]service.PreviewRow, error)
}

// Resolver writes the user's choices for conflicted transactions.
type Resolver interface {
	Resolve(ctx context.Context, accountID string, items []service.Resolution) ([]service.ResolutionResult, error)
}

type appState int

const (
	stateLoading appState = iota
	statePicking
	stateSubmitting
	stateDone
)

// App walks the user through every conflicted transaction of one account.
type App struct {
	ctx        context.Context
	accountID  string
	preview    Previewer
	resolver   Resolver
	dateFormat string
	currency   string

	state    appState
	rows     []service.PreviewRow
	index    int
	cursor   int
	choices  []service.Resolution
	skipped  int
	results  []service.ResolutionResult
	err      error
	quitting bool
}

// Options tweak presentation.
type Options struct {
	DateFormat     string
	CurrencySymbol string
}

func New(ctx context.Context, accountID string, preview Previewer, resolver Resolver, opts Options) *App {
	if opts.DateFormat == "" {
		opts.DateFormat = "2006-01-02"
	}
	return &App{
		ctx:        ctx,
		accountID:  accountID,
		preview:    preview,
		resolver:   resolver,
		dateFormat: opts.DateFormat,
		currency:   opts.CurrencySymbol,
	}
}

func (a *App) Init() tea.Cmd {
	return a.loadConflicts()
}

func (a *App) loadConflicts() tea.Cmd {
	return func() tea.Msg {
		rows, err := a.preview.Preview(a.ctx, a.accountID)
		if err != nil {
			return errMsg{err}
		}
		conflicts := make([]service.PreviewRow, 0, len(rows))
		for _, r := range rows {
			if r.Conflicted() {
				conflicts = append(conflicts, r)
			}
		}
		return conflictsMsg(conflicts)
	}
}

func (a *App) submit() tea.Cmd {
	items := append([]service.Resolution(nil), a.choices...)
	return func() tea.Msg {
		if len(items) == 0 {
			return resultsMsg(nil)
		}
		res, err := a.resolver.Resolve(a.ctx, a.accountID, items)
		if err != nil {
			return errMsg{err}
		}
		return resultsMsg(res)
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case conflictsMsg:
		a.rows = m
		a.state = statePicking
		if len(a.rows) == 0 {
			a.state = stateDone
		}
		return a, nil
	case resultsMsg:
		a.results = m
		a.state = stateDone
		return a, nil
	case errMsg:
		a.err = m.error
		a.state = stateDone
		return a, nil
	case tea.KeyMsg:
		return a.handleKey(m)
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := m.String()
	if key == "ctrl+c" {
		a.quitting = true
		return a, tea.Quit
	}
	switch a.state {
	case stateDone:
		switch key {
		case "q", "enter", "esc":
			a.quitting = true
			return a, tea.Quit
		}
		return a, nil
	case statePicking:
	default:
		return a, nil
	}

	row := a.rows[a.index]
	switch key {
	case "q":
		// Choices made so far are still written.
		return a.finish()
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < len(row.Conflicts)-1 {
			a.cursor++
		}
	case "enter":
		a.choices = append(a.choices, service.Resolution{
			TransactionID: row.ID,
			RuleID:        row.Conflicts[a.cursor].ID,
		})
		return a.next()
	case "s":
		a.skipped++
		return a.next()
	}
	return a, nil
}

func (a *App) next() (tea.Model, tea.Cmd) {
	a.index++
	a.cursor = 0
	if a.index < len(a.rows) {
		return a, nil
	}
	return a.finish()
}

func (a *App) finish() (tea.Model, tea.Cmd) {
	a.state = stateSubmitting
	return a, a.submit()
}

// Results returns the outcome of the submitted choices once the app is done.
func (a *App) Results() []service.ResolutionResult { return a.results }

// Err returns the load or submit failure, if any.
func (a *App) Err() error { return a.err }

func (a *App) View() string {
	if a.quitting {
		return ""
	}
	switch a.state {
	case stateLoading:
		return titleStyle.Render("Resolve conflicts") + "\nLoading..."
	case stateSubmitting:
		return titleStyle.Render("Resolve conflicts") + fmt.Sprintf("\nSaving %d choice(s)...", len(a.choices))
	case stateDone:
		return a.renderDone()
	default:
		return a.renderPicker()
	}
}

func (a *App) renderPicker() string {
	row := a.rows[a.index]
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Resolve conflicts (%d/%d)", a.index+1, len(a.rows))))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s  %s%s  %s\n", row.Date.Format(a.dateFormat), a.currency, row.Value.StringFixed(2), row.Description))
	if row.CategoryBefore != nil {
		b.WriteString(mutedStyle.Render("current category: "+*row.CategoryBefore) + "\n")
	}
	b.WriteString("\n")
	for i, r := range row.Conflicts {
		line := fmt.Sprintf("%s -> %s (label %q, exclude %.0f%%)", r.Name, r.CategoryName, r.Label, r.Percentage*100)
		if i == a.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n" + mutedStyle.Render("[↑/↓] move  [enter] pick  [s] skip  [q] finish"))
	return b.String()
}

func (a *App) renderDone() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Resolve conflicts"))
	b.WriteString("\n\n")
	if a.err != nil {
		b.WriteString(errorStyle.Render("error: "+a.err.Error()) + "\n")
		b.WriteString("\n" + mutedStyle.Render("[q] quit"))
		return b.String()
	}
	if len(a.rows) == 0 {
		b.WriteString("No conflicts for this account.\n")
		b.WriteString("\n" + mutedStyle.Render("[q] quit"))
		return b.String()
	}
	accepted := 0
	for _, r := range a.results {
		if r.Accepted {
			accepted++
			b.WriteString(okStyle.Render(fmt.Sprintf("ok   %s <- %s", r.TransactionID, r.RuleID)) + "\n")
			continue
		}
		b.WriteString(errorStyle.Render(fmt.Sprintf("fail %s <- %s: %s", r.TransactionID, r.RuleID, r.Error)) + "\n")
	}
	b.WriteString(fmt.Sprintf("\n%d resolved, %d failed, %d skipped\n", accepted, len(a.results)-accepted, a.skipped+len(a.rows)-a.index))
	b.WriteString("\n" + mutedStyle.Render("[q] quit"))
	return b.String()
}

// messages
type conflictsMsg []service.PreviewRow

type resultsMsg []service.ResolutionResult

type errMsg struct{ error }

// styles
var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
