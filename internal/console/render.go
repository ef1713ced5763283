package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/lithammer/dedent"

	"github.com/anders-m-mygind/masa-app/internal/app"
	"github.com/anders-m-mygind/masa-app/internal/history"
)

func formatReplyText(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}

// Renderer prints views to a terminal. Only what changed since the previous
// view is printed: the status line, and the verdict panel once an analysis
// settles.
type Renderer struct {
	mu   sync.Mutex
	out  io.Writer
	last *app.View

	statusStyle lipgloss.Style
	pillStyles  map[string]lipgloss.Style
	titleStyle  lipgloss.Style
	dimStyle    lipgloss.Style
}

func NewRenderer(out io.Writer) *Renderer {
	r := lipgloss.NewRenderer(out)
	pill := r.NewStyle().Bold(true).Padding(0, 1)
	return &Renderer{
		out:         out,
		statusStyle: r.NewStyle().Foreground(lipgloss.Color("245")),
		titleStyle:  r.NewStyle().Bold(true),
		dimStyle:    r.NewStyle().Foreground(lipgloss.Color("245")),
		pillStyles: map[string]lipgloss.Style{
			"yes":  pill.Background(lipgloss.Color("160")).Foreground(lipgloss.Color("231")),
			"no":   pill.Background(lipgloss.Color("28")).Foreground(lipgloss.Color("231")),
			"idle": pill.Background(lipgloss.Color("240")).Foreground(lipgloss.Color("231")),
		},
	}
}

// Render implements app.Renderer.
func (r *Renderer) Render(v app.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.last
	r.last = &v

	if prev == nil || prev.Status != v.Status {
		fmt.Fprintln(r.out, r.statusStyle.Render("» "+v.Status))
	}
	if settled(v) && (prev == nil || prev.Result != v.Result || prev.Metadata != v.Metadata) {
		fmt.Fprintln(r.out, r.panel(v))
	}
}

// settled is true once a verdict or a failure is on the panel.
func settled(v app.View) bool {
	return v.Result.Pill != app.Placeholder && v.Result.Pill != app.PanelWorking
}

func (r *Renderer) pill(v app.View) string {
	style, ok := r.pillStyles[v.Result.State]
	if !ok {
		style = r.pillStyles["idle"]
	}
	return style.Render(v.Result.Pill)
}

func (r *Renderer) panel(v app.View) string {
	m := v.Metadata
	return formatReplyText(panelTemplate,
		r.pill(v),
		v.Result.Label,
		r.titleStyle.Render(m.Title),
		m.Brand,
		m.Country,
		m.Confidence,
		m.Reasoning,
	)
}

// Summary is the full view, printed by the status command.
func (r *Renderer) Summary(v app.View) string {
	still := "No image captured."
	if v.Still != nil {
		still = fmt.Sprintf("Snapshot %dx%d (%.1fkB) captured %s",
			v.Still.Width, v.Still.Height, float64(len(v.Still.Data))/1024, v.Still.CapturedAt.Format("15:04:05"))
	}
	var b strings.Builder
	b.WriteString(formatReplyText(statusTemplate,
		v.Status,
		v.KeyStatus,
		v.Camera,
		v.Preview,
		r.dimStyle.Render(still),
	))
	b.WriteString("\n")
	b.WriteString(r.panel(v))
	b.WriteString("\n")
	b.WriteString(r.dimStyle.Render(controlsLine(v.Controls)))
	return b.String()
}

func controlsLine(c app.Controls) string {
	var enabled []string
	if c.EnableCameraVisible && c.EnableCamera {
		enabled = append(enabled, "camera")
	}
	if c.StopCamera {
		enabled = append(enabled, "stop")
	}
	if c.Capture {
		enabled = append(enabled, "capture")
	}
	if c.Analyze {
		enabled = append(enabled, "analyze")
	}
	if len(enabled) == 0 {
		return "Available: key, help"
	}
	return "Available: " + strings.Join(enabled, ", ")
}

// History renders the history table, or a notice when it is empty.
func (r *Renderer) History(entries []history.Entry) string {
	if len(entries) == 0 {
		return MsgHistoryEmpty
	}
	return history.Render(entries)
}
