package convert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pyrite-io/smelt/log"
	"github.com/pyrite-io/smelt/metrics"
	"github.com/pyrite-io/smelt/types"
)

// StepEventKind classifies a step lifecycle event.
type StepEventKind string

const (
	// StepStarted fires immediately before a step's process spawns.
	StepStarted StepEventKind = "step_started"
	// StepSucceeded fires when a step exits with code zero.
	StepSucceeded StepEventKind = "step_succeeded"
	// StepFailed fires when a step exits abnormally.
	StepFailed StepEventKind = "step_failed"
)

// StepEvent is a progress observation keyed by step ordinal and identifier.
// Observers can render progress against the pre-declared catalogue without
// guessing which step is executing.
type StepEvent struct {
	Kind    StepEventKind
	Ordinal int // zero-based position in the catalogue
	Total   int // catalogue length
	Step    types.StepID
	// ExitCode is meaningful only for StepFailed.
	ExitCode int
}

// PipelineConfig configures a single pipeline run.
type PipelineConfig struct {
	// Env is the converter toolchain environment.
	Env Env
	// Logger receives structured pipeline logs. Nil disables logging.
	Logger *log.Logger
	// Collector records metrics. Nil disables metrics (nil-safe methods).
	Collector *metrics.Collector
	// Runner overrides step execution (for testing).
	// Nil uses a ProcessRunner with discarded output.
	Runner StepRunner
	// OnEvent is an optional synchronous progress observer.
	OnEvent func(StepEvent)
	// StepTimeout is an optional per-step deadline. Zero means none.
	// Expiry terminates the step and is treated as a step failure.
	StepTimeout time.Duration
}

// Pipeline executes one family's step catalogue against one Validated
// conversion data instance. A pipeline runs at most once.
type Pipeline struct {
	desc  Descriptor
	v     Validated
	steps []PlannedStep
	cfg   PipelineConfig

	ran atomic.Bool

	mu      sync.Mutex
	current int  // ordinal of executing step
	running bool // true while a step is in flight
}

// NewPipeline builds a pipeline bound to v. Construction requires a
// Validated instance, enforcing validation-before-execution at the type
// level; the zero Validated value is rejected.
//
// The plan is checked against the descriptor's catalogue: same length,
// same identifiers, same order.
func NewPipeline(desc Descriptor, v Validated, cfg PipelineConfig) (*Pipeline, error) {
	if !v.valid() {
		return nil, errors.New("pipeline requires validated conversion data")
	}

	steps, err := desc.Plan(v, cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("planning %s conversion: %w", desc.Family(), err)
	}

	catalogue := desc.Steps()
	if len(steps) != len(catalogue) {
		return nil, fmt.Errorf("plan has %d steps, catalogue declares %d", len(steps), len(catalogue))
	}
	for i, step := range steps {
		if step.ID != catalogue[i] {
			return nil, fmt.Errorf("plan step %d is %s, catalogue declares %s", i, step.ID, catalogue[i])
		}
	}

	if cfg.Runner == nil {
		cfg.Runner = &ProcessRunner{}
	}

	return &Pipeline{
		desc:    desc,
		v:       v,
		steps:   steps,
		cfg:     cfg,
		current: -1,
	}, nil
}

// Current reports the ordinal and identifier of the executing step.
// ok is false when no step is in flight.
func (p *Pipeline) Current() (ordinal int, step types.StepID, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return 0, "", false
	}
	return p.current, p.steps[p.current].ID, true
}

// Run executes the catalogue strictly in declared order and returns the
// terminal status. The first failing step aborts the run; its exit code
// becomes the status exit code unmodified. Success is returned only when
// every step succeeded.
//
// Cancellation is checked before each step; an in-flight step is forcibly
// terminated when ctx is canceled (the step command runs under ctx). A
// canceled run reports OutcomeCanceled, never a false success or a step
// failure from the kill-induced exit.
//
// Run returns an error only on misuse: a pipeline executes at most once.
func (p *Pipeline) Run(ctx context.Context) (types.Status, error) {
	if !p.ran.CompareAndSwap(false, true) {
		return types.Status{}, errors.New("pipeline has already run")
	}

	total := len(p.steps)
	start := time.Now()

	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logInfo("conversion canceled before step", map[string]any{
				"step": string(step.ID), "ordinal": i,
			})
			p.cfg.Collector.IncConversionCanceled()
			return types.CanceledStatus(fmt.Sprintf("canceled before step %s", step.ID)), nil
		}

		p.setCurrent(i)
		p.emit(StepEvent{Kind: StepStarted, Ordinal: i, Total: total, Step: step.ID})
		p.cfg.Collector.IncStepStarted()
		p.logInfo("step started", map[string]any{
			"step": string(step.ID), "ordinal": i, "argv": step.Argv,
		})

		stepCtx := ctx
		var cancel context.CancelFunc
		if p.cfg.StepTimeout > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, p.cfg.StepTimeout)
		}
		res := p.cfg.Runner.Run(stepCtx, step)
		if cancel != nil {
			cancel()
		}
		p.clearCurrent()

		// A kill triggered by run cancellation must not surface as a
		// step failure.
		if ctx.Err() != nil {
			p.logInfo("conversion canceled during step", map[string]any{
				"step": string(step.ID), "ordinal": i,
			})
			p.cfg.Collector.IncConversionCanceled()
			return types.CanceledStatus(fmt.Sprintf("canceled during step %s", step.ID)), nil
		}

		if res.Err != nil {
			p.emit(StepEvent{Kind: StepFailed, Ordinal: i, Total: total, Step: step.ID, ExitCode: -1})
			p.cfg.Collector.IncStepFailed()
			p.cfg.Collector.IncConversionFailed()
			p.logError("step could not run", map[string]any{
				"step": string(step.ID), "error": res.Err.Error(),
			})
			return types.FailureStatus(step.ID, -1, fmt.Sprintf("step %s could not run: %v", step.ID, res.Err)), nil
		}

		if res.ExitCode != 0 {
			p.emit(StepEvent{Kind: StepFailed, Ordinal: i, Total: total, Step: step.ID, ExitCode: res.ExitCode})
			p.cfg.Collector.IncStepFailed()
			p.cfg.Collector.IncConversionFailed()
			p.logError("step failed", map[string]any{
				"step": string(step.ID), "exit_code": res.ExitCode,
			})
			return types.FailureStatus(step.ID, res.ExitCode, ""), nil
		}

		p.emit(StepEvent{Kind: StepSucceeded, Ordinal: i, Total: total, Step: step.ID})
		p.cfg.Collector.IncStepSucceeded()
		p.logInfo("step succeeded", map[string]any{
			"step": string(step.ID), "ordinal": i,
		})
	}

	result := p.desc.Result(p.v, p.cfg.Env)
	p.cfg.Collector.IncConversionSucceeded()
	p.logInfo("conversion completed", map[string]any{
		"model_path": result.ModelPath,
		"duration":   time.Since(start).String(),
	})
	return types.SuccessStatus(result), nil
}

func (p *Pipeline) setCurrent(i int) {
	p.mu.Lock()
	p.current = i
	p.running = true
	p.mu.Unlock()
}

func (p *Pipeline) clearCurrent() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

func (p *Pipeline) emit(ev StepEvent) {
	if p.cfg.OnEvent != nil {
		p.cfg.OnEvent(ev)
	}
}

func (p *Pipeline) logInfo(msg string, fields map[string]any) {
	if p.cfg.Logger != nil {
		p.cfg.Logger.Info(msg, fields)
	}
}

func (p *Pipeline) logError(msg string, fields map[string]any) {
	if p.cfg.Logger != nil {
		p.cfg.Logger.Error(msg, fields)
	}
}
