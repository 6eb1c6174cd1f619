package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pyrite-io/smelt/convert"
	"github.com/pyrite-io/smelt/types"
)

func llamaSteps() []types.StepID {
	return []types.StepID{types.StepCheckEnvironment, types.StepConvert, types.StepQuantize}
}

func newTestModel(t *testing.T) (ProgressModel, chan convert.StepEvent, chan types.Status) {
	t.Helper()
	events := make(chan convert.StepEvent, 8)
	done := make(chan types.Status, 1)
	m := NewProgressModel(types.FamilyLlama, "conv-001", llamaSteps(), events, done, nil)
	return m, events, done
}

func applyEvent(t *testing.T, m ProgressModel, ev convert.StepEvent) ProgressModel {
	t.Helper()
	next, _ := m.Update(EventMsg(ev))
	pm, ok := next.(ProgressModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return pm
}

func TestProgressInitialView(t *testing.T) {
	m, _, _ := newTestModel(t)

	view := m.View()
	for _, step := range llamaSteps() {
		if !strings.Contains(view, string(step)) {
			t.Errorf("view missing step %s:\n%s", step, view)
		}
	}
	if !strings.Contains(view, "llama") {
		t.Errorf("view missing family:\n%s", view)
	}
}

func TestProgressStepTransitions(t *testing.T) {
	m, _, _ := newTestModel(t)

	m = applyEvent(t, m, convert.StepEvent{Kind: convert.StepStarted, Ordinal: 0, Total: 3, Step: types.StepCheckEnvironment})
	if m.states[0] != stepRunning {
		t.Errorf("state[0] = %d after start, want running", m.states[0])
	}

	m = applyEvent(t, m, convert.StepEvent{Kind: convert.StepSucceeded, Ordinal: 0, Total: 3, Step: types.StepCheckEnvironment})
	if m.states[0] != stepDone {
		t.Errorf("state[0] = %d after success, want done", m.states[0])
	}

	m = applyEvent(t, m, convert.StepEvent{Kind: convert.StepStarted, Ordinal: 1, Total: 3, Step: types.StepConvert})
	m = applyEvent(t, m, convert.StepEvent{Kind: convert.StepFailed, Ordinal: 1, Total: 3, Step: types.StepConvert, ExitCode: 17})
	if m.states[1] != stepFailed {
		t.Errorf("state[1] = %d after failure, want failed", m.states[1])
	}
	if m.exitCode != 17 {
		t.Errorf("exitCode = %d, want 17", m.exitCode)
	}
	if !strings.Contains(m.View(), "exit 17") {
		t.Errorf("failed view missing exit code:\n%s", m.View())
	}
}

func TestProgressDoneQuits(t *testing.T) {
	m, _, _ := newTestModel(t)

	st := types.SuccessStatus(&types.Result{ModelPath: "/models/7B/ggml-model-q4_0.bin"})
	next, cmd := m.Update(DoneMsg(st))
	pm := next.(ProgressModel)

	if pm.Status() == nil || !pm.Status().Success() {
		t.Fatal("final status not recorded")
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !strings.Contains(pm.View(), "Conversion succeeded") {
		t.Errorf("final view missing outcome:\n%s", pm.View())
	}
	if !strings.Contains(pm.View(), "/models/7B/ggml-model-q4_0.bin") {
		t.Errorf("final view missing model path:\n%s", pm.View())
	}
}

func TestProgressAbortInvokesCancel(t *testing.T) {
	events := make(chan convert.StepEvent, 1)
	done := make(chan types.Status, 1)

	canceled := false
	m := NewProgressModel(types.FamilyGGML, "conv-002", []types.StepID{types.StepMigrate}, events, done, func() {
		canceled = true
	})

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	pm := next.(ProgressModel)

	if !canceled {
		t.Error("cancel func not invoked on Ctrl+C")
	}
	if !pm.canceling {
		t.Error("model not marked canceling")
	}
	if !strings.Contains(pm.View(), "Canceling") {
		t.Errorf("view missing cancel notice:\n%s", pm.View())
	}

	// Second abort press must not panic or re-cancel
	next, _ = pm.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if _, ok := next.(ProgressModel); !ok {
		t.Fatalf("Update returned %T", next)
	}
}

func TestProgressCanceledOutcome(t *testing.T) {
	m, _, _ := newTestModel(t)

	next, _ := m.Update(DoneMsg(types.CanceledStatus("")))
	pm := next.(ProgressModel)
	if !strings.Contains(pm.View(), "Conversion canceled") {
		t.Errorf("view missing canceled outcome:\n%s", pm.View())
	}
}
