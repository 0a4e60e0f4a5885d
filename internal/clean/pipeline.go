package clean

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/KaramelBytes/tidyloom-cli/internal/frame"
	"github.com/KaramelBytes/tidyloom-cli/internal/logging"
	"github.com/google/uuid"
)

var (
	// ErrEmptyDataset is returned before detection when the input has no
	// columns or no rows.
	ErrEmptyDataset = errors.New("dataset is empty or unreadable")
	// ErrInvalidState is returned when a pipeline method is called out of order.
	ErrInvalidState = errors.New("invalid pipeline state")
)

// State is a stage of the pipeline lifecycle.
type State int

const (
	StateIdle State = iota
	StateDetecting
	StateAwaitingSelection
	StateRunning
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDetecting:
		return "detecting"
	case StateAwaitingSelection:
		return "awaiting_selection"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is what a completed run hands back.
type Result struct {
	RunID       string       `json:"run_id"`
	Frame       *frame.Frame `json:"-"`
	Log         []string     `json:"log"`
	Steps       []Step       `json:"steps"`
	Decisions   []Decision   `json:"decisions"`
	Renames     []Rename     `json:"renames,omitempty"`
	Conversions []Conversion `json:"conversions,omitempty"`
	RowsIn      int          `json:"rows_in"`
	RowsOut     int          `json:"rows_out"`
	RowsRemoved int          `json:"rows_removed"`
	// OutlierColumns lists the indicator columns appended by flag_outliers.
	OutlierColumns []string  `json:"outlier_columns,omitempty"`
	Warnings       []string  `json:"warnings,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Pipeline drives one dataset through detection, selection and a run.
// It is not safe for concurrent use.
type Pipeline struct {
	opts   Options
	logger *slog.Logger

	state     State
	input     *frame.Frame
	decisions []Decision
	selection Selection
	overrides map[string]ColumnType
	result    *Result
}

// NewPipeline validates opts and returns an idle pipeline. A nil logger
// discards debug output.
func NewPipeline(opts Options, logger *slog.Logger) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pipeline{opts: opts, logger: logger, state: StateIdle}, nil
}

// State returns the current lifecycle stage.
func (p *Pipeline) State() State { return p.state }

// Decisions returns the detector output keyed by the input's column names.
func (p *Pipeline) Decisions() []Decision {
	out := make([]Decision, len(p.decisions))
	copy(out, p.decisions)
	return out
}

// Result returns the outcome of a completed run, or nil.
func (p *Pipeline) Result() *Result { return p.result }

// Detect takes a private copy of f, scores every column and waits for a
// selection. An empty dataset leaves the pipeline idle.
func (p *Pipeline) Detect(ctx context.Context, f *frame.Frame) ([]Decision, error) {
	if p.state != StateIdle {
		return nil, fmt.Errorf("%w: detect called while %s", ErrInvalidState, p.state)
	}
	if f.Empty() {
		return nil, ErrEmptyDataset
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyDataset, err)
	}
	p.state = StateDetecting
	p.input = f.Clone()
	decisions, err := Detect(ctx, p.input, p.opts)
	if err != nil {
		p.state = StateIdle
		p.input = nil
		return nil, err
	}
	p.decisions = decisions
	p.state = StateAwaitingSelection
	p.logger.Debug("detection finished", "columns", len(decisions), "rows", p.input.Rows())
	return p.Decisions(), nil
}

// Select records which steps run and the per-column type overrides. It may
// be called any number of times before Run; the last call wins.
func (p *Pipeline) Select(sel Selection, overrides map[string]ColumnType) error {
	if p.state != StateAwaitingSelection {
		return fmt.Errorf("%w: select called while %s", ErrInvalidState, p.state)
	}
	ov := make(map[string]ColumnType, len(overrides))
	for k, v := range overrides {
		t, err := ParseColumnType(string(v))
		if err != nil {
			return fmt.Errorf("override %q: %w", k, err)
		}
		ov[k] = t
	}
	p.selection = sel
	p.overrides = ov
	return nil
}

// Run executes the enabled steps in StepOrder. When clean_column_names is
// enabled, overrides and decisions are re-keyed to the new names before any
// step executes. A collision under CollisionError aborts here, before
// Running, and leaves the pipeline awaiting a new selection.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if p.state != StateAwaitingSelection {
		return nil, fmt.Errorf("%w: run called while %s", ErrInvalidState, p.state)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel := p.selection
	res := &Result{
		RunID:     uuid.NewString(),
		Steps:     sel.Steps(),
		RowsIn:    p.input.Rows(),
		StartedAt: time.Now().UTC(),
	}
	decisions := p.Decisions()
	overrides := p.overrides
	var renameNotes []string
	if sel.Enabled(StepCleanColumnNames) {
		plan, notes, err := CanonicalizeNames(p.input.Names(), p.opts.NameCollisions)
		if err != nil {
			return nil, err
		}
		res.Renames = plan
		renameNotes = notes
		var unknown []string
		overrides, unknown = rekeyOverrides(overrides, plan)
		for _, k := range unknown {
			res.Warnings = append(res.Warnings, fmt.Sprintf("override for unknown column %q ignored", k))
		}
		decisions = rekeyDecisions(decisions, plan)
	} else {
		for _, k := range unknownKeys(overrides, p.input.Names()) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("override for unknown column %q ignored", k))
		}
	}
	res.Decisions = decisions

	p.state = StateRunning
	logger := p.logger.With("run_id", res.RunID)
	logger.Debug("run started", "steps", sel.String(), "rows", res.RowsIn)

	log := &ChangeLog{}
	cur := p.input
	types := effectiveTypes(decisions, overrides)
	for _, step := range StepOrder {
		if !sel.Enabled(step) {
			continue
		}
		before := log.Len()
		switch step {
		case StepCleanColumnNames:
			cur = applyRenames(cur, res.Renames, renameNotes, log)
		case StepConvertNumeric:
			var convs []Conversion
			cur, convs = ConvertNumeric(cur, columnsOfType(cur, types, TypeNumeric), p.opts, log)
			res.Conversions = append(res.Conversions, convs...)
		case StepConvertDates:
			var convs []Conversion
			cur, convs = ConvertDates(cur, columnsOfType(cur, types, TypeDate), p.opts, log)
			res.Conversions = append(res.Conversions, convs...)
		case StepFillMissing:
			cur = FillMissing(cur, p.opts, log)
		case StepRemoveDuplicates:
			cur, res.RowsRemoved = RemoveDuplicates(cur, log)
		case StepFlagOutliers:
			cur, res.OutlierColumns = FlagOutliers(cur, p.opts, log)
		case StepStandardizeText:
			cur = StandardizeText(cur, log)
		}
		logger.Debug("step finished", "step", string(step), "entries", log.Len()-before, "rows", cur.Rows(), "columns", len(cur.Columns))
	}
	if cur == p.input {
		cur = cur.Clone()
	}
	res.Frame = cur
	res.Log = log.Entries()
	res.RowsOut = cur.Rows()
	res.FinishedAt = time.Now().UTC()
	p.result = res
	p.state = StateCompleted
	logger.Info("run completed", "rows_in", res.RowsIn, "rows_out", res.RowsOut, "log_entries", len(res.Log))
	return res, nil
}

// Clean is Detect, Select and Run in one call.
func Clean(ctx context.Context, f *frame.Frame, sel Selection, overrides map[string]ColumnType, opts Options, logger *slog.Logger) (*Result, error) {
	p, err := NewPipeline(opts, logger)
	if err != nil {
		return nil, err
	}
	if _, err := p.Detect(ctx, f); err != nil {
		return nil, err
	}
	if err := p.Select(sel, overrides); err != nil {
		return nil, err
	}
	return p.Run(ctx)
}

// rekeyOverrides moves overrides from original labels to their renamed
// form. Keys that already use a post-rename name are kept; anything else is
// returned as unknown.
func rekeyOverrides(overrides map[string]ColumnType, plan []Rename) (map[string]ColumnType, []string) {
	idx := renameIndex(plan)
	targets := make(map[string]struct{}, len(plan))
	for _, r := range plan {
		targets[r.To] = struct{}{}
	}
	out := make(map[string]ColumnType, len(overrides))
	var unknown []string
	// original labels first so an explicit pre-rename override wins
	keys := sortedKeys(overrides)
	for _, k := range keys {
		if to, ok := idx[k]; ok {
			out[to] = overrides[k]
		}
	}
	for _, k := range keys {
		if _, ok := idx[k]; ok {
			continue
		}
		if _, ok := targets[k]; ok {
			if _, set := out[k]; !set {
				out[k] = overrides[k]
			}
			continue
		}
		unknown = append(unknown, k)
	}
	return out, unknown
}

func rekeyDecisions(decisions []Decision, plan []Rename) []Decision {
	out := make([]Decision, len(decisions))
	copy(out, decisions)
	for i := range out {
		if i < len(plan) && plan[i].From == out[i].Column {
			out[i].Column = plan[i].To
		}
	}
	return out
}

func unknownKeys(overrides map[string]ColumnType, names []string) []string {
	known := make(map[string]struct{}, len(names))
	for _, n := range names {
		known[n] = struct{}{}
	}
	var out []string
	for _, k := range sortedKeys(overrides) {
		if _, ok := known[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

func sortedKeys(m map[string]ColumnType) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// effectiveTypes merges detector output and overrides. An override other
// than auto always wins; an undecided column counts as text.
func effectiveTypes(decisions []Decision, overrides map[string]ColumnType) map[string]ColumnType {
	out := make(map[string]ColumnType, len(decisions))
	for _, d := range decisions {
		if _, ok := out[d.Column]; ok {
			continue
		}
		t := TypeText
		if d.Decided {
			t = d.Type
		}
		out[d.Column] = t
	}
	for k, t := range overrides {
		if t != TypeAuto {
			out[k] = t
		}
	}
	return out
}

func columnsOfType(f *frame.Frame, types map[string]ColumnType, want ColumnType) []string {
	var out []string
	for _, name := range f.Names() {
		if types[name] == want {
			out = append(out, name)
		}
	}
	return out
}

// guardColumn runs fn and turns a panic into a change-log entry so that one
// bad column does not stop the run. fn must only publish its changes as its
// last action.
func guardColumn(log *ChangeLog, step Step, column string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Addf("Left '%s' unchanged during %s: %v", column, step, r)
		}
	}()
	fn()
}
