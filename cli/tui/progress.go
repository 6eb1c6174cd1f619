package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pyrite-io/smelt/convert"
	"github.com/pyrite-io/smelt/types"
)

// stepState tracks the display state of a single pipeline step.
type stepState int

const (
	stepPending stepState = iota
	stepRunning
	stepDone
	stepFailed
)

// EventMsg wraps a pipeline step event for the Bubble Tea loop.
type EventMsg convert.StepEvent

// DoneMsg carries the final conversion status.
type DoneMsg types.Status

// ProgressModel is a Bubble Tea model that renders live pipeline progress.
type ProgressModel struct {
	family       types.Family
	conversionID string
	steps        []types.StepID
	states       []stepState
	exitCode     int
	spin         spinner.Model
	events       <-chan convert.StepEvent
	done         <-chan types.Status
	status       *types.Status
	canceling    bool
	cancel       func()
}

// NewProgressModel creates a progress model for the given step catalogue.
// The cancel func is invoked when the user requests an abort; the model
// keeps running until the final status arrives on done.
func NewProgressModel(family types.Family, conversionID string, steps []types.StepID, events <-chan convert.StepEvent, done <-chan types.Status, cancel func()) ProgressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = RunningStyle

	return ProgressModel{
		family:       family,
		conversionID: conversionID,
		steps:        steps,
		states:       make([]stepState, len(steps)),
		spin:         sp,
		events:       events,
		done:         done,
		cancel:       cancel,
	}
}

// Init implements tea.Model.
func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.waitForEvent())
}

// waitForEvent blocks on the next step event or the final status.
func (m ProgressModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev, ok := <-m.events:
			if !ok {
				return DoneMsg(<-m.done)
			}
			return EventMsg(ev)
		case st := <-m.done:
			return DoneMsg(st)
		}
	}
}

// Update implements tea.Model.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, progressKeys.Abort) {
			if !m.canceling {
				m.canceling = true
				if m.cancel != nil {
					m.cancel()
				}
			}
			return m, nil
		}
		return m, nil

	case EventMsg:
		if i := msg.Ordinal; i >= 0 && i < len(m.states) {
			switch msg.Kind {
			case convert.StepStarted:
				m.states[i] = stepRunning
			case convert.StepSucceeded:
				m.states[i] = stepDone
			case convert.StepFailed:
				m.states[i] = stepFailed
				m.exitCode = msg.ExitCode
			}
		}
		return m, m.waitForEvent()

	case DoneMsg:
		st := types.Status(msg)
		m.status = &st
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m ProgressModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(fmt.Sprintf("Converting %s model (%s)", m.family, m.conversionID)))
	b.WriteString("\n\n")

	for i, step := range m.steps {
		var marker, line string
		switch m.states[i] {
		case stepDone:
			marker = SuccessStyle.Render("✓")
			line = SuccessStyle.Render(string(step))
		case stepFailed:
			marker = ErrorStyle.Render("✗")
			line = ErrorStyle.Render(fmt.Sprintf("%s (exit %d)", step, m.exitCode))
		case stepRunning:
			marker = m.spin.View()
			line = RunningStyle.Render(string(step))
		default:
			marker = PendingStyle.Render("•")
			line = PendingStyle.Render(string(step))
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", marker, line))
	}

	if m.status != nil {
		b.WriteString("\n")
		b.WriteString(m.outcomeLine())
		b.WriteString("\n")
	} else if m.canceling {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("Canceling..."))
		b.WriteString("\n")
	}

	help := HelpStyle.Render("Press q or Ctrl+C to abort")
	return BoxStyle.Render(b.String()) + "\n" + help
}

func (m ProgressModel) outcomeLine() string {
	switch m.status.Outcome {
	case types.OutcomeSuccess:
		line := "Conversion succeeded"
		if m.status.Result != nil {
			line += ": " + m.status.Result.ModelPath
		}
		return SuccessStyle.Render(line)
	case types.OutcomeCanceled:
		return ErrorStyle.Render("Conversion canceled")
	default:
		return ErrorStyle.Render(fmt.Sprintf("Conversion failed at %s (exit %d)", m.status.FailedStep, m.status.ExitCode))
	}
}

// Status returns the final conversion status, or nil if the view exited early.
func (m ProgressModel) Status() *types.Status {
	return m.status
}

// RunProgress runs the progress view until the conversion completes.
func RunProgress(m ProgressModel) (types.Status, error) {
	p := tea.NewProgram(m)
	final, err := p.Run()
	if err != nil {
		return types.Status{}, fmt.Errorf("progress view: %w", err)
	}

	pm, ok := final.(ProgressModel)
	if !ok || pm.status == nil {
		return types.Status{}, fmt.Errorf("progress view exited before completion")
	}
	return *pm.status, nil
}

// progressKeyMap defines key bindings for the progress view.
type progressKeyMap struct {
	Abort key.Binding
}

var progressKeys = progressKeyMap{
	Abort: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "abort"),
	),
}
