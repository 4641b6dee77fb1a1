package research

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/port-research/internal/model"
)

// Step names the pipeline stages in execution order. Transitions are
// one-directional; only retrying may loop back into querying, for the retry
// subset.
type Step string

const (
	StepInit              Step = "init"
	StepQuerying          Step = "querying"
	StepRetrying          Step = "retrying"
	StepExtracting        Step = "extracting"
	StepValidating        Step = "validating"
	StepConflictDetection Step = "conflict_detection"
	StepAnalyzing         Step = "analyzing"
	StepNotes             Step = "notes"
	StepPreviewReady      Step = "preview_ready"
	StepError             Step = "error"
)

// stepOrder drives both transition legality and the progress percentage
// attached to each status event.
var stepOrder = map[Step]int{
	StepInit:              0,
	StepQuerying:          10,
	StepRetrying:          35,
	StepExtracting:        45,
	StepValidating:        60,
	StepConflictDetection: 70,
	StepAnalyzing:         80,
	StepNotes:             90,
	StepPreviewReady:      100,
	StepError:             100,
}

// Preview is the terminal success payload: everything the caller needs to
// review and approve.
type Preview struct {
	RunID          string                `json:"run_id"`
	FieldProposals []model.FieldProposal `json:"field_proposals"`
	NotesProposal  *model.NotesProposal  `json:"notes_proposal,omitempty"`
	RawQueries     []model.ResearchQuery `json:"raw_queries"`
	CombinedReport string                `json:"combined_report"`
	Summary        string                `json:"summary"`
	UpdatePayload  model.UpdatePayload   `json:"update_payload"`
}

// EventSink receives the unidirectional event stream of one run. Exactly one
// of Preview or Error terminates the stream; Warning events (persistence
// failures after preview delivery) are non-terminal.
type EventSink interface {
	Status(step Step, message string, progress int)
	Preview(p Preview)
	Error(e *Error)
	Warning(e *Error)
}

// Emitter enforces the protocol state machine over a sink: one-directional
// transitions, monotonically non-decreasing progress (retries never roll the
// percentage back), and a single terminal event.
type Emitter struct {
	mu        sync.Mutex
	sink      EventSink
	state     Step
	highWater int
	terminal  bool
}

// NewEmitter wraps a sink. The emitter starts in init.
func NewEmitter(sink EventSink) *Emitter {
	return &Emitter{sink: sink, state: StepInit}
}

// Transition moves the state machine forward and emits a status event.
// Backward transitions are dropped, except retrying → querying which re-emits
// at the clamped high-water percentage.
func (e *Emitter) Transition(step Step, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.terminal {
		return
	}

	from, to := stepOrder[e.state], stepOrder[step]
	backIntoQuerying := e.state == StepRetrying && step == StepQuerying
	if to < from && !backIntoQuerying {
		zap.L().Warn("research: dropped backward transition",
			zap.String("from", string(e.state)),
			zap.String("to", string(step)),
		)
		return
	}

	e.state = step
	progress := to
	if progress < e.highWater {
		progress = e.highWater
	}
	e.highWater = progress

	e.sink.Status(step, message, progress)
}

// Preview emits the terminal preview event.
func (e *Emitter) Preview(p Preview) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminal {
		return
	}
	e.terminal = true
	e.state = StepPreviewReady
	e.highWater = 100
	e.sink.Preview(p)
}

// Fail emits the terminal error event.
func (e *Emitter) Fail(err *Error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminal {
		return
	}
	e.terminal = true
	e.state = StepError
	e.sink.Error(err)
}

// Warn emits a non-terminal warning. Used for the post-preview persistence
// failure, which is reported but does not invalidate delivered results.
func (e *Emitter) Warn(err *Error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink.Warning(err)
}

// Terminal reports whether a terminal event was emitted.
func (e *Emitter) Terminal() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminal
}
