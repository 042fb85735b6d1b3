package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var levels = []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// Sparkline is a one-line scrolling graph of the last Width samples.
type Sparkline struct {
	Data  []float64
	Width int
	Max   float64
	Style lipgloss.Style
	Label string
}

func NewSparkline(width int, label string, style lipgloss.Style) Sparkline {
	return Sparkline{
		Width: width,
		Label: label,
		Style: style,
		Data:  make([]float64, 0, width),
	}
}

func (s *Sparkline) Add(val float64) {
	s.Data = append(s.Data, val)
	if len(s.Data) > s.Width {
		s.Data = s.Data[len(s.Data)-s.Width:]
	}

	// Scale to the visible window
	max := 0.0
	for _, v := range s.Data {
		if v > max {
			max = v
		}
	}
	s.Max = max
}

func (s Sparkline) View() string {
	if s.Width <= 0 {
		return ""
	}

	out := strings.Builder{}
	out.WriteString(s.Style.Render(s.Label))
	out.WriteString("\n")

	var graph strings.Builder
	for _, v := range s.Data {
		graph.WriteString(levels[s.level(v)])
	}

	// Pad if not full
	if pad := s.Width - len(s.Data); pad > 0 {
		graph.WriteString(strings.Repeat(" ", pad))
	}

	return out.String() + s.Style.Render(graph.String())
}

func (s Sparkline) level(v float64) int {
	if s.Max <= 0 {
		return 0
	}
	idx := int(v / s.Max * float64(len(levels)-1))
	if idx < 0 {
		return 0
	}
	if idx >= len(levels) {
		return len(levels) - 1
	}
	return idx
}
