package tui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/simonyos/rulefy/internal/chunker"
	"github.com/simonyos/rulefy/internal/llm"
	"github.com/simonyos/rulefy/internal/tui/theme"
)

type chunkStartMsg chunker.Chunk

type chunkDoneMsg struct {
	chunk  chunker.Chunk
	result *llm.Result
}

type waitMsg time.Duration

type finishMsg struct{}

// ProgressModel shows which chunk is in flight and the tokens spent so far.
type ProgressModel struct {
	spinner  spinner.Model
	current  chunker.Chunk
	started  bool
	finished int
	tokens   int
	waiting  time.Duration
	done     bool
}

// NewProgressModel creates an idle progress view.
func NewProgressModel() ProgressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Current.Primary)
	return ProgressModel{spinner: sp}
}

// Init implements tea.Model.
func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case chunkStartMsg:
		m.current = chunker.Chunk(msg)
		m.started = true
		m.waiting = 0
	case chunkDoneMsg:
		m.finished++
		if msg.result != nil && msg.result.Usage != nil {
			m.tokens += msg.result.Usage.TotalTokens
		}
	case waitMsg:
		m.waiting = time.Duration(msg)
	case finishMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m ProgressModel) View() string {
	if m.done {
		if m.finished == 0 {
			return ""
		}
		return theme.Status(true).Render("✓") +
			fmt.Sprintf(" processed %d chunk(s)", m.finished) +
			theme.Muted().Render(fmt.Sprintf(" · %d tokens", m.tokens)) + "\n"
	}

	var status string
	switch {
	case m.waiting > 0:
		status = fmt.Sprintf("Waiting %s before the next chunk...", m.waiting)
	case m.started:
		status = fmt.Sprintf("Processing chunk %d/%d (%d tokens)...",
			m.current.Index+1, m.current.TotalChunks, m.current.TokenCount)
	default:
		status = "Preparing..."
	}
	line := m.spinner.View() + " " + status
	if m.tokens > 0 {
		line += theme.Muted().Render(fmt.Sprintf(" · %d tokens used", m.tokens))
	}
	return line + "\n"
}

// Progress drives a ProgressModel from summarizer events. The display starts
// with the first chunk, so it never overlaps the confirmation prompt.
type Progress struct {
	out     io.Writer
	once    sync.Once
	program *tea.Program
	done    chan struct{}
}

// NewProgress renders progress on out until Stop is called. It never reads
// input and leaves signal handling to the caller.
func NewProgress(out io.Writer) *Progress {
	return &Progress{out: out}
}

func (p *Progress) start() {
	p.once.Do(func() {
		p.program = tea.NewProgram(NewProgressModel(),
			tea.WithInput(nil),
			tea.WithOutput(p.out),
			tea.WithoutSignalHandler(),
		)
		p.done = make(chan struct{})
		go func() {
			defer close(p.done)
			_, _ = p.program.Run()
		}()
	})
}

func (p *Progress) OnChunkStart(chunk chunker.Chunk) {
	p.start()
	p.program.Send(chunkStartMsg(chunk))
}

func (p *Progress) OnChunkDone(chunk chunker.Chunk, result *llm.Result) {
	p.start()
	p.program.Send(chunkDoneMsg{chunk: chunk, result: result})
}

func (p *Progress) OnWait(d time.Duration) {
	p.start()
	p.program.Send(waitMsg(d))
}

// Stop finishes the display and waits for the terminal to be restored. It is
// a no-op when no chunk was ever started.
func (p *Progress) Stop() {
	if p.program == nil {
		return
	}
	p.program.Send(finishMsg{})
	<-p.done
}
