// Package tui renders upload and processing progress in the terminal.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shibinsp/ocrapillm/internal/model"
	"github.com/shibinsp/ocrapillm/internal/progress"
	"github.com/shibinsp/ocrapillm/internal/store"
)

type stateMsg store.State

type doneMsg struct {
	doc *model.Document
	err error
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	activeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// UploadView shows the upload bar, then the processing stages.
type UploadView struct {
	filename string
	state    store.State
	width    int
	cancel   func()

	finished bool
	doc      *model.Document
	err      error
}

func NewUploadView(filename string, cancel func()) *UploadView {
	return &UploadView{filename: filename, width: 80, cancel: cancel}
}

func (v *UploadView) Init() tea.Cmd { return nil }

func (v *UploadView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if v.cancel != nil {
				v.cancel()
			}
			return v, nil
		}
	case stateMsg:
		v.state = store.State(msg)
	case doneMsg:
		v.finished = true
		v.doc, v.err = msg.doc, msg.err
		return v, tea.Quit
	}
	return v, nil
}

func (v *UploadView) View() string {
	lines := []string{titleStyle.Render("Processing " + v.filename), ""}

	uploadPct := v.state.UploadProgress
	if !v.state.IsUploading && (v.state.IsProcessing || v.finished) {
		uploadPct = 100
	}
	lines = append(lines, fmt.Sprintf("Upload     %s %3d%%", bar(float64(uploadPct)/100, v.barWidth()), uploadPct))
	lines = append(lines, "")

	raw := v.state.Processing.Progress
	if v.finished && v.err == nil {
		raw = 100
	}
	pv := progress.Map(raw, v.state.Processing.Message)
	for i, s := range pv.Stages {
		switch {
		case s.State == progress.Complete || (v.finished && v.err == nil):
			lines = append(lines, doneStyle.Render("✓ "+s.Label))
		case s.State == progress.Active && (v.state.IsProcessing || v.finished):
			line := fmt.Sprintf("▸ %-30s %s", s.Label, bar(s.Sub, v.barWidth()/2))
			if i == pv.Active && v.err != nil {
				lines = append(lines, errorStyle.Render(line))
			} else {
				lines = append(lines, activeStyle.Render(line))
			}
		default:
			lines = append(lines, pendingStyle.Render("· "+s.Label))
		}
	}
	lines = append(lines, "")
	if v.state.IsProcessing {
		lines = append(lines, fmt.Sprintf("Overall    %s %3.0f%%", bar(pv.Overall/100, v.barWidth()), pv.Overall))
		lines = append(lines, pendingStyle.Render(pv.Message))
	}

	switch {
	case v.finished && v.err != nil:
		lines = append(lines, errorStyle.Render("✗ "+v.err.Error()))
	case v.finished && v.doc != nil:
		lines = append(lines, doneStyle.Render(fmt.Sprintf("✓ Document %s ready (%d pages)", v.doc.ID, v.doc.Pages)))
	default:
		lines = append(lines, pendingStyle.Render("q: cancel"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}

func (v *UploadView) barWidth() int {
	w := v.width - 20
	if w > 40 {
		w = 40
	}
	if w < 10 {
		w = 10
	}
	return w
}

func bar(frac float64, width int) string {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac*float64(width) + 0.5)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

// Runner is the part of *upload.Orchestrator the view drives.
type Runner interface {
	Run(ctx context.Context, path string) (*model.Document, error)
}

// RunUpload runs r while rendering the store's progress until it finishes
// or the user cancels.
func RunUpload(ctx context.Context, r Runner, st *store.Store, path, name string, in io.Reader, out io.Writer) (*model.Document, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	view := NewUploadView(name, cancel)
	p := tea.NewProgram(view, tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out))
	unsub := st.Subscribe(func(s store.State, _ store.Action) { p.Send(stateMsg(s)) })
	defer unsub()

	type result struct {
		doc *model.Document
		err error
	}
	resc := make(chan result, 1)
	go func() {
		doc, err := r.Run(ctx, path)
		resc <- result{doc, err}
		p.Send(doneMsg{doc: doc, err: err})
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		cancel()
		<-resc
		return nil, fmt.Errorf("progress view: %w", err)
	}
	res := <-resc
	return res.doc, res.err
}
