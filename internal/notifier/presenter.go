package notifier

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Presenter displays toasts. Implementations must be safe for concurrent use.
type Presenter interface {
	Show(ctx context.Context, t Toast) error
	Dismiss(ctx context.Context, t Toast) error
}

// ConsolePresenter writes one styled line per toast event to w. Colors are
// chosen by the lipgloss renderer for w, so a pipe or file gets plain text.
type ConsolePresenter struct {
	mu sync.Mutex
	w  io.Writer

	badge map[Severity]lipgloss.Style
	text  lipgloss.Style
	faint lipgloss.Style
}

func NewConsolePresenter(w io.Writer) *ConsolePresenter {
	r := lipgloss.NewRenderer(w)
	badge := func(c string) lipgloss.Style {
		return r.NewStyle().Foreground(lipgloss.Color(c)).Bold(true)
	}
	return &ConsolePresenter{
		w: w,
		badge: map[Severity]lipgloss.Style{
			SeverityInfo:    badge("81"),
			SeveritySuccess: badge("42"),
			SeverityWarning: badge("214"),
			SeverityError:   badge("196"),
		},
		text:  r.NewStyle().Foreground(lipgloss.Color("252")),
		faint: r.NewStyle().Foreground(lipgloss.Color("243")),
	}
}

func (p *ConsolePresenter) Show(ctx context.Context, t Toast) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	style, ok := p.badge[t.Severity]
	if !ok {
		style = p.badge[SeverityInfo]
	}
	line := fmt.Sprintf("%s %s %s",
		style.Render(t.Icon),
		p.text.Render(t.Text),
		p.faint.Render(fmt.Sprintf("#%d", t.ID)),
	)
	return p.writeLine(line)
}

func (p *ConsolePresenter) Dismiss(ctx context.Context, t Toast) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.writeLine(p.faint.Render(fmt.Sprintf("  dismissed #%d", t.ID)))
}

func (p *ConsolePresenter) writeLine(s string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := io.WriteString(p.w, s+"\n")
	return err
}
