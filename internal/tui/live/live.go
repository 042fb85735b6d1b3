package live

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stampede/internal/runner"
	"stampede/internal/tui/components"
	"stampede/internal/tui/styles"
)

// maxGlyphs is how many recent call tokens the stream keeps on screen.
const maxGlyphs = 60

type (
	CountdownMsg struct{ Step string }
	ReleaseMsg   struct{}
	CallMsg      struct{ Record runner.CallRecord }
	DoneMsg      struct{}
)

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Hooks forwards runner events to the live view.
func Hooks(p Sender) runner.Hooks {
	return runner.Hooks{
		OnCountdown: func(step string, _ int) { p.Send(CountdownMsg{Step: step}) },
		OnRelease:   func() { p.Send(ReleaseMsg{}) },
		OnCall:      func(rec runner.CallRecord) { p.Send(CallMsg{Record: rec}) },
	}
}

type Model struct {
	Total int
	Mode  runner.Mode
	URL   string

	Phase     string
	Completed int
	OK        int
	Errored   int
	ByClass   map[string]int
	Glyphs    []string

	LatencyLine components.Sparkline
	Progress    progress.Model

	Width    int
	Done     bool
	Stopping bool

	cancel context.CancelFunc
}

// NewModel builds the view for a run of cfg. cancel is invoked when the
// user interrupts; the view keeps running until DoneMsg arrives.
func NewModel(cfg runner.Config, cancel context.CancelFunc) Model {
	phase := "waiting"
	if cfg.Mode == runner.ModeSequential {
		phase = "sequential"
	}
	return Model{
		Total:       cfg.Count,
		Mode:        cfg.Mode,
		URL:         cfg.URL,
		Phase:       phase,
		ByClass:     make(map[string]int),
		LatencyLine: components.NewSparkline(40, "Latency (ms)", styles.Warn),
		Progress:    progress.New(progress.WithDefaultGradient()),
		cancel:      cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case CountdownMsg:
		m.Phase = msg.Step
		return m, nil

	case ReleaseMsg:
		m.Phase = "GO!"
		return m, nil

	case CallMsg:
		rec := msg.Record
		m.Completed++
		switch {
		case !rec.Responded():
			m.Errored++
		case rec.Class == runner.ClassOK:
			m.OK++
		}
		if rec.Responded() {
			m.ByClass[rec.Class.String()]++
		}
		m.Glyphs = append(m.Glyphs, rec.Glyph())
		if len(m.Glyphs) > maxGlyphs {
			m.Glyphs = m.Glyphs[len(m.Glyphs)-maxGlyphs:]
		}
		m.LatencyLine.Add(rec.LatencyMs)
		return m, nil

	case DoneMsg:
		m.Done = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.Stopping && m.cancel != nil {
				m.cancel()
			}
			m.Stopping = true
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Progress.Width = msg.Width - 4

		w := msg.Width - 8
		if w < 10 {
			w = 10
		}
		m.LatencyLine.Width = w
		return m, nil
	}

	return m, nil
}

// Percent is the share of calls that have completed.
func (m Model) Percent() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Completed) / float64(m.Total)
}

func (m Model) View() string {
	s := strings.Builder{}

	s.WriteString(styles.Title.Render(fmt.Sprintf("stampede • %s", m.Mode)))
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render(m.URL))
	s.WriteString("\n\n")

	phase := styles.Countdown.Render(m.Phase)
	if m.Phase == "GO!" {
		phase = styles.Go.Render(m.Phase)
	}

	failed := m.Completed - m.OK
	failStyle := styles.Active
	if failed > 0 {
		failStyle = styles.Error
	}

	col1 := fmt.Sprintf("PHASE: %s\nDONE: %d/%d", phase, m.Completed, m.Total)
	col2 := fmt.Sprintf("OK: %s\nFAIL: %s", styles.Value.Render(fmt.Sprint(m.OK)), failStyle.Render(fmt.Sprint(failed)))
	col3 := fmt.Sprintf("ERR: %d\n%s", m.Errored, m.classBreakdown())

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(col2),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")

	s.WriteString(styles.Box.Render(m.LatencyLine.View()))
	s.WriteString("\n\n")

	s.WriteString(strings.Join(m.Glyphs, ""))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.ViewAs(m.Percent()))
	s.WriteString("\n\n")

	if m.Stopping {
		s.WriteString(styles.Warn.Render("stopping, waiting for in-flight calls..."))
	} else {
		s.WriteString(styles.RenderKey("ctrl+c", "stop"))
	}
	s.WriteString("\n")

	return s.String()
}

func (m Model) classBreakdown() string {
	keys := make([]string, 0, len(m.ByClass))
	for k := range m.ByClass {
		if k != runner.ClassOK.String() {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", runner.Classification(k).Glyph(), m.ByClass[k]))
	}
	if len(parts) == 0 {
		return styles.Subtle.Render("-")
	}
	return strings.Join(parts, " ")
}
