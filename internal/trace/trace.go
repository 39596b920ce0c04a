package trace

import (
	"time"

	"github.com/google/uuid"

	qaerr "github.com/verifiable-ai/onchainqa/internal/errors"
)

// Step action names recorded by the agent pipeline.
const (
	ActionParseQuestion = "parse_question"
	ActionExecuteQuery  = "execute_query"
	ActionFormatAnswer  = "format_answer"
	ActionError         = "error"
	ActionSecurityError = "security_error"
)

// Step is one recorded action inside a trace. StepID and Timestamp are
// assigned at creation and are not part of the step hash.
type Step struct {
	StepID    string
	Timestamp time.Time
	Action    string
	Inputs    map[string]any
	Outputs   map[string]any
	Metadata  map[string]any
}

// Hash recomputes the step's content hash.
func (s *Step) Hash() string {
	return StepHash(s.Action, s.Inputs, s.Outputs, s.Metadata)
}

// Trace is the append-only execution log of a single agent invocation.
// Traces are never shared across invocations.
type Trace struct {
	TraceID    string
	AgentID    string
	StartTime  time.Time
	EndTime    time.Time
	Steps      []*Step
	IPFSHash   string
	commitment string
	finalized  bool

	now func() time.Time
}

// Option configures a Trace at construction.
type Option func(*Trace)

// WithClock injects a clock, used by tests to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Trace) { t.now = now }
}

func New(agentID string, opts ...Option) *Trace {
	t := &Trace{
		TraceID: uuid.NewString(),
		AgentID: agentID,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.StartTime = t.now().UTC()
	return t
}

// LogStep appends a step with a fresh id and timestamp.
func (t *Trace) LogStep(action string, inputs, outputs, metadata map[string]any) *Step {
	step := &Step{
		StepID:    uuid.NewString(),
		Timestamp: t.now().UTC(),
		Action:    action,
		Inputs:    normalizeMap(inputs),
		Outputs:   normalizeMap(outputs),
		Metadata:  normalizeMap(metadata),
	}
	t.Steps = append(t.Steps, step)
	return step
}

// Finalize seals the trace: sets the end time, computes the commitment
// hash over the ordered step hashes and stores it. A trace can be sealed
// exactly once; a second call is an error rather than a silent re-seal.
func (t *Trace) Finalize() (string, error) {
	if t.finalized {
		return "", qaerr.New(qaerr.CodeInternal, "trace already finalized")
	}
	t.EndTime = t.now().UTC()
	t.commitment = CommitmentHash(t.stepHashes())
	t.finalized = true
	return t.commitment, nil
}

func (t *Trace) Finalized() bool { return t.finalized }

// CommitmentHash returns the sealed commitment, or "" before Finalize.
func (t *Trace) CommitmentHash() string { return t.commitment }

func (t *Trace) stepHashes() []string {
	hashes := make([]string, len(t.Steps))
	for i, step := range t.Steps {
		hashes[i] = step.Hash()
	}
	return hashes
}

// Document snapshots the trace into its storable wire form, recomputing
// every step hash.
func (t *Trace) Document() *Document {
	doc := &Document{
		TraceID:        t.TraceID,
		AgentID:        t.AgentID,
		StartTime:      FormatTime(t.StartTime),
		Steps:          make([]StepDocument, len(t.Steps)),
		CommitmentHash: t.commitment,
		IPFSHash:       t.IPFSHash,
	}
	if !t.EndTime.IsZero() {
		doc.EndTime = FormatTime(t.EndTime)
	}
	for i, step := range t.Steps {
		doc.Steps[i] = StepDocument{
			StepID:    step.StepID,
			Action:    step.Action,
			Timestamp: FormatTime(step.Timestamp),
			Inputs:    step.Inputs,
			Outputs:   step.Outputs,
			Metadata:  step.Metadata,
			StepHash:  step.Hash(),
		}
	}
	return doc
}

// Recorder owns the current trace for one agent invocation. The first
// LogStep implicitly starts a trace; this auto-start is intentional, not
// an error path.
type Recorder struct {
	agentID string
	trace   *Trace
	opts    []Option
}

func NewRecorder(agentID string, opts ...Option) *Recorder {
	return &Recorder{agentID: agentID, opts: opts}
}

func (r *Recorder) Current() *Trace { return r.trace }

func (r *Recorder) LogStep(action string, inputs, outputs, metadata map[string]any) *Step {
	if r.trace == nil {
		r.trace = New(r.agentID, r.opts...)
	}
	return r.trace.LogStep(action, inputs, outputs, metadata)
}

// Finalize seals the current trace. It is an error to finalize before any
// trace exists; an empty but started trace commits to SHA256("").
func (r *Recorder) Finalize() (string, error) {
	if r.trace == nil {
		return "", qaerr.New(qaerr.CodeInternal, "no active trace to finalize")
	}
	return r.trace.Finalize()
}
