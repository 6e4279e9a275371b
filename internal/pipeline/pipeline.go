package pipeline

import (
	"context"
	"log/slog"
)

// Stage is one unit of the pipeline.
//
// Execute returns true to let the address continue to the next stage and
// false to drop it. Filtering stages are predicates and do not report
// errors; a stage that cannot decide drops the address.
type Stage interface {
	// Execute inspects addr and reports whether it passes.
	Execute(ctx context.Context, addr string) bool

	// Name returns the stage name for logging purposes.
	Name() string
}

// StageFunc adapts a plain function to the Stage interface.
type StageFunc struct {
	name string
	fn   func(ctx context.Context, addr string) bool
}

// NewStageFunc creates a named Stage from fn.
func NewStageFunc(name string, fn func(ctx context.Context, addr string) bool) *StageFunc {
	return &StageFunc{name: name, fn: fn}
}

// Execute implements Stage.
func (s *StageFunc) Execute(ctx context.Context, addr string) bool {
	return s.fn(ctx, addr)
}

// Name implements Stage.
func (s *StageFunc) Name() string {
	return s.name
}

// Pipeline is an ordered, append-only sequence of stages.
// A Pipeline is not safe for concurrent AppendStage calls, but Execute may
// run concurrently once construction is done if every stage allows it.
type Pipeline struct {
	// stages contains the ordered list of stages to execute.
	stages []Stage

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates an empty Pipeline.
// Stages should be added using AppendStage after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		stages: make([]Stage, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AppendStage appends a stage to the pipeline.
// Stages are executed in the order they are added and cannot be removed.
func (p *Pipeline) AppendStage(stage Stage) {
	p.stages = append(p.stages, stage)
}

// AppendStages appends multiple stages to the pipeline.
func (p *Pipeline) AppendStages(stages ...Stage) {
	p.stages = append(p.stages, stages...)
}

// Execute runs addr through every stage in order.
//
// It returns true when all stages accepted addr and false as soon as one
// stage rejects it; later stages are not invoked. A rejected address is
// dropped silently.
func (p *Pipeline) Execute(ctx context.Context, addr string) bool {
	for _, stage := range p.stages {
		if !stage.Execute(ctx, addr) {
			p.logger.Debug("address dropped",
				"stage", stage.Name(),
				"address", addr,
			)
			return false
		}
	}

	p.logger.Debug("address accepted", "address", addr)
	return true
}

// StageCount returns the number of stages in the pipeline.
func (p *Pipeline) StageCount() int {
	return len(p.stages)
}

// StageNames returns the names of all stages in execution order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, stage := range p.stages {
		names[i] = stage.Name()
	}
	return names
}
