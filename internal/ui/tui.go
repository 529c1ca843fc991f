package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	refreshEvery = 100 * time.Millisecond
	quitTimeout  = 2 * time.Second
	minWidth     = 40
)

// TUIRenderer draws a live import view with bubbletea. Events update a
// Tracker; the view polls it on every refresh tick.
type TUIRenderer struct {
	mu      sync.Mutex
	out     *os.File
	tracker *Tracker
	model   *importModel
	program *tea.Program
	done    chan struct{}
}

// NewTUIRenderer fails unless cfg.Output is a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	f, ok := cfg.Output.(*os.File)
	if !ok || !IsTTY(f) {
		return nil, errors.New("ui: output is not a terminal")
	}
	tracker := NewTracker()
	return &TUIRenderer{
		out:     f,
		tracker: tracker,
		model:   newImportModel(tracker, cfg.Source, GetStyles(cfg.NoColor || DetectNoColor())),
	}, nil
}

// Start launches the bubbletea program in the background.
func (r *TUIRenderer) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		return nil
	}

	r.program = tea.NewProgram(r.model, tea.WithOutput(r.out), tea.WithAltScreen())
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.tracker.Observe(event)
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.tracker.Record(event)
}

// Complete switches the view to the summary and ends the program.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.tracker.Observe(ProgressEvent{Stage: StageComplete})

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(finishedMsg(stats))
	}
}

// Stop ends the program, waiting briefly for it to restore the terminal.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program == nil {
		return nil
	}

	r.program.Quit()
	select {
	case <-r.done:
	case <-time.After(quitTimeout):
	}
	r.program = nil
	return nil
}

type (
	refreshMsg  time.Time
	finishedMsg CompletionStats
)

// importModel is the bubbletea model behind TUIRenderer.
type importModel struct {
	tracker *Tracker
	source  string
	styles  Styles
	spinner spinner.Model
	bar     progress.Model
	width   int

	cancelled bool
	summary   *CompletionStats
}

func newImportModel(tracker *Tracker, source string, styles Styles) *importModel {
	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	sp.Style = styles.Active

	return &importModel{
		tracker: tracker,
		source:  source,
		styles:  styles,
		spinner: sp,
		bar:     progress.New(progress.WithSolidFill(ColorAccent), progress.WithoutPercentage(), progress.WithWidth(minWidth)),
		width:   80,
	}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// Init implements tea.Model.
func (m *importModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, refresh())
}

// Update implements tea.Model.
func (m *importModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if k := msg.String(); k == "ctrl+c" || k == "q" {
			m.cancelled = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = max(msg.Width, minWidth)
		m.bar.Width = max(m.width-24, 20)
	case refreshMsg:
		return m, refresh()
	case finishedMsg:
		stats := CompletionStats(msg)
		m.summary = &stats
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *importModel) View() string {
	switch {
	case m.cancelled:
		return "Import cancelled.\n"
	case m.summary != nil:
		return m.summaryView(*m.summary)
	}

	snap := m.tracker.Snapshot()
	title := "Rolodex Import"
	if m.source != "" {
		title += " · " + m.source
	}

	lines := []string{
		m.styles.Header.Render(title),
		m.stageStrip(snap.Stage),
		"",
		m.progressLine(snap),
		m.rateLine(snap),
		m.styles.Sparkline.Render(m.tracker.Sparkline(max(m.width-20, 10))) + m.styles.Dim.Render(" contacts/s"),
	}
	if snap.Item != "" {
		lines = append(lines, m.styles.Dim.Render(truncateLeft(snap.Item, m.width-4)))
	}
	lines = append(lines, "", m.footer(snap))

	return m.styles.Frame.Width(m.width - 2).Render(strings.Join(lines, "\n"))
}

func (m *importModel) stageStrip(current Stage) string {
	parts := make([]string, len(pipeline))
	for i, s := range pipeline {
		label := stageNames[s].short
		switch {
		case s < current:
			parts[i] = m.styles.Success.Render("● " + label)
		case s == current:
			parts[i] = m.styles.Active.Render(m.spinner.View() + " " + label)
		default:
			parts[i] = m.styles.Dim.Render("○ " + label)
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *importModel) progressLine(s Snapshot) string {
	if s.Total == 0 {
		return m.spinner.View() + " " + s.Stage.String() + "..."
	}
	return fmt.Sprintf("%s %s  %s",
		m.bar.ViewAs(s.Fraction()),
		m.styles.Active.Render(fmt.Sprintf("%3.0f%%", s.Fraction()*100)),
		m.styles.Label.Render(fmt.Sprintf("%d / %d contacts", s.Done, s.Total)))
}

func (m *importModel) rateLine(s Snapshot) string {
	line := fmt.Sprintf("%.0f/s now · %.0f/s mean · %.0f/s peak", s.Rate.Now, s.Rate.Mean, s.Rate.Peak)
	if s.Remaining > 0 {
		line += " · ~" + humanDuration(s.Remaining) + " left"
	}
	return m.styles.Speed.Render(line)
}

func (m *importModel) footer(s Snapshot) string {
	var parts []string
	if s.Warnings > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", s.Warnings)))
	}
	if s.Errors > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", s.Errors)))
	}
	if s.Problem != "" {
		parts = append(parts, m.styles.Dim.Render(truncateLeft(s.Problem, m.width/2)))
	}
	parts = append(parts, m.styles.Dim.Render("q to quit"))
	return strings.Join(parts, m.styles.Dim.Render("  │  "))
}

func (m *importModel) summaryView(st CompletionStats) string {
	row := func(label, value string) string {
		return m.styles.Label.Render(fmt.Sprintf("%-10s", label)) + " " + m.styles.Active.Render(value)
	}

	lines := []string{
		m.styles.Success.Render("✓ Import Complete"),
		"",
		row("User", st.User),
		row("Contacts", fmt.Sprint(st.Contacts)),
		row("Version", fmt.Sprint(st.Version)),
		row("Duration", humanDuration(st.Duration)),
	}
	if st.Embedder.Model != "" {
		lines = append(lines, row("Embedder", fmt.Sprintf("%s (%d dims)", st.Embedder.Model, st.Embedder.Dimensions)))
	}

	timings := []struct {
		stage Stage
		d     time.Duration
	}{
		{StageLoading, st.Stages.Load},
		{StageEmbedding, st.Stages.Embed},
		{StageIndexing, st.Stages.Index},
		{StagePersisting, st.Stages.Persist},
	}
	var cells []string
	for _, tm := range timings {
		if tm.d > 0 {
			cells = append(cells, fmt.Sprintf("%s %s", stageNames[tm.stage].short, tm.d.Round(time.Millisecond)))
		}
	}
	if len(cells) > 0 {
		lines = append(lines, "", m.styles.Dim.Render(strings.Join(cells, " · ")))
	}

	if st.Unembedded > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d contacts searchable by keyword only", st.Unembedded)))
	}
	if st.Errors > 0 {
		lines = append(lines, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", st.Errors)))
	}
	if st.Warnings > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", st.Warnings)))
	}

	return m.styles.Summary.Width(m.width-2).Render(strings.Join(lines, "\n")) + "\n"
}

// humanDuration prints d at second resolution: "45s", "2m", "2m 5s", "1h 3m".
func humanDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h, m, s := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0 && s == 0:
		return fmt.Sprintf("%dm", m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// truncateLeft keeps the last maxLen runes of s, marking the cut with "...".
func truncateLeft(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen < 4 {
		return "..."
	}
	return "..." + string(r[len(r)-maxLen+3:])
}

var _ Renderer = (*TUIRenderer)(nil)
