package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const barWidth = 30

// ProgressMsg reports how far a named stage has got.
type ProgressMsg struct {
	Stage       string
	Done, Total int
}

type doneMsg struct{ err error }

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type model struct {
	title   string
	cancel  context.CancelFunc
	stages  []string
	current map[string]ProgressMsg
	start   time.Time
	now     time.Time
	done    bool
	err     error
}

func newModel(title string, cancel context.CancelFunc) model {
	now := time.Now()
	return model{
		title:   title,
		cancel:  cancel,
		current: make(map[string]ProgressMsg),
		start:   now,
		now:     now,
	}
}

func (m model) Init() tea.Cmd { return tick() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case ProgressMsg:
		if _, seen := m.current[msg.Stage]; !seen {
			m.stages = append(m.stages, msg.Stage)
		}
		m.current[msg.Stage] = msg
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString("\n  " + cyan.Render(m.title) + "  " + dim.Render(m.now.Sub(m.start).Round(100*time.Millisecond).String()) + "\n\n")

	for _, stage := range m.stages {
		p := m.current[stage]
		frac := 0.0
		if p.Total > 0 {
			frac = float64(p.Done) / float64(p.Total)
		}
		mark := dim.Render("·")
		if p.Done >= p.Total {
			mark = green.Render("✓")
		}
		fmt.Fprintf(&b, "  %s %s %s %s %s\n",
			mark,
			white.Render(fmt.Sprintf("%-13s", stage)),
			bar(frac, barWidth),
			magenta.Render(fmt.Sprintf("%3.0f%%", 100*frac)),
			dim.Render(fmt.Sprintf("%d/%d", p.Done, p.Total)))
	}

	switch {
	case m.err != nil:
		b.WriteString("\n  " + red.Render("failed: "+m.err.Error()) + "\n")
	case m.done:
		b.WriteString("\n  " + green.Render("done") + "\n")
	default:
		b.WriteString("\n  " + dim.Render("q cancel") + "\n")
	}
	return b.String()
}

// throttle forwards a stage's progress only when its whole percentage
// changes, so a busy worker pool does not flood the program.
type throttle struct {
	mu   sync.Mutex
	last map[string]int
	send func(tea.Msg)
}

func (t *throttle) report(stage string, done, total int) {
	pct := 100
	if total > 0 {
		pct = 100 * done / total
	}
	t.mu.Lock()
	prev, ok := t.last[stage]
	if ok && prev == pct {
		t.mu.Unlock()
		return
	}
	t.last[stage] = pct
	t.mu.Unlock()
	t.send(ProgressMsg{Stage: stage, Done: done, Total: total})
}

// Run shows a progress view on out while job runs, and returns job's
// error. Quitting the view cancels the context handed to job.
func Run(ctx context.Context, out io.Writer, title string, job func(ctx context.Context, progress func(stage string, done, total int)) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(title, cancel), tea.WithOutput(out), tea.WithContext(ctx))
	th := &throttle{last: make(map[string]int), send: p.Send}

	errc := make(chan error, 1)
	go func() {
		err := job(ctx, th.report)
		errc <- err
		p.Send(doneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		cancel()
		<-errc
		return err
	}
	return <-errc
}
