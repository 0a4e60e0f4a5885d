package clean

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NumericFill selects the statistic used to fill missing numeric cells.
type NumericFill string

const (
	FillMedian NumericFill = "median"
	FillMean   NumericFill = "mean"
	FillZero   NumericFill = "zero"
)

// TextFill selects how missing text cells are filled.
type TextFill string

const (
	FillMode  TextFill = "mode"
	FillEmpty TextFill = "empty"
)

// CollisionPolicy decides what happens when two labels canonicalize to the
// same name.
type CollisionPolicy string

const (
	// CollisionSuffix keeps the first column's name and appends _2, _3, ...
	// to later ones.
	CollisionSuffix CollisionPolicy = "suffix"
	// CollisionError refuses to run.
	CollisionError CollisionPolicy = "error"
)

// Options holds the tunable heuristics of the engine.
type Options struct {
	// SampleSize is how many non-missing values per column the detector reads.
	SampleSize int `json:"sample_size" validate:"min=1,max=100000"`
	// MinMatches is the floor applied to every likeness and commit threshold.
	MinMatches int `json:"min_matches" validate:"min=0"`
	// NumericSampleFraction of the sample must look numeric.
	NumericSampleFraction float64 `json:"numeric_sample_fraction" validate:"gt=0,lte=1"`
	// DateSampleFraction of the sample must look like dates.
	DateSampleFraction float64 `json:"date_sample_fraction" validate:"gt=0,lte=1"`
	// DateCommitFraction of all rows must parse before a date column is replaced.
	DateCommitFraction float64 `json:"date_commit_fraction" validate:"gte=0,lte=1"`
	// IQRMultiplier scales the interquartile range into outlier fences.
	IQRMultiplier float64 `json:"iqr_multiplier" validate:"gt=0"`

	NumericFill NumericFill `json:"numeric_fill" validate:"oneof=median mean zero"`
	TextFill    TextFill    `json:"text_fill" validate:"oneof=mode empty"`

	// StripUnits removes unit suffixes such as km/h or rpm before numeric parsing.
	StripUnits bool `json:"strip_units"`
	// DayFirst prefers 02/01/2006 over 01/02/2006 for ambiguous dates.
	DayFirst bool `json:"day_first"`

	NameCollisions CollisionPolicy `json:"name_collisions" validate:"oneof=suffix error"`
	DetectWorkers  int             `json:"detect_workers" validate:"min=1,max=64"`
}

// DefaultOptions returns the stock heuristics.
func DefaultOptions() Options {
	return Options{
		SampleSize:            30,
		MinMatches:            3,
		NumericSampleFraction: 0.5,
		DateSampleFraction:    0.1,
		DateCommitFraction:    0.05,
		IQRMultiplier:         1.5,
		NumericFill:           FillMedian,
		TextFill:              FillMode,
		StripUnits:            true,
		NameCollisions:        CollisionSuffix,
		DetectWorkers:         4,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every option against its allowed range.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			}
			return fmt.Errorf("invalid options: %s", strings.Join(parts, "; "))
		}
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// ColumnType is a per-column semantic type decision or override.
type ColumnType string

const (
	TypeAuto    ColumnType = "auto"
	TypeNumeric ColumnType = "numeric"
	TypeDate    ColumnType = "date"
	TypeText    ColumnType = "text"
)

// ErrUnknownColumnType is returned for override values outside auto|numeric|date|text.
var ErrUnknownColumnType = errors.New("unknown column type")

// ParseColumnType accepts the canonical names plus a few spellings people use.
func ParseColumnType(s string) (ColumnType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return TypeAuto, nil
	case "numeric", "number", "num":
		return TypeNumeric, nil
	case "date", "datetime", "time":
		return TypeDate, nil
	case "text", "string", "categorical":
		return TypeText, nil
	default:
		return "", fmt.Errorf("%w: %q (use auto, numeric, date or text)", ErrUnknownColumnType, s)
	}
}

// Step names one stage of the pipeline.
type Step string

const (
	StepCleanColumnNames Step = "clean_column_names"
	StepConvertNumeric   Step = "convert_numeric"
	StepConvertDates     Step = "convert_dates"
	StepFillMissing      Step = "fill_missing"
	StepRemoveDuplicates Step = "remove_duplicates"
	StepFlagOutliers     Step = "flag_outliers"
	StepStandardizeText  Step = "standardize_text"
)

// StepOrder is the fixed execution order.
var StepOrder = []Step{
	StepCleanColumnNames,
	StepConvertNumeric,
	StepConvertDates,
	StepFillMissing,
	StepRemoveDuplicates,
	StepFlagOutliers,
	StepStandardizeText,
}

// legacy checkbox keys from the first version of the tool
var stepAliases = map[string]Step{
	"clean_cols":  StepCleanColumnNames,
	"numeric_fix": StepConvertNumeric,
	"date_fix":    StepConvertDates,
	"missing_fix": StepFillMissing,
	"dup_fix":     StepRemoveDuplicates,
	"outlier_fix": StepFlagOutliers,
	"text_fix":    StepStandardizeText,
}

// ErrUnknownStep is returned for step names outside StepOrder and its aliases.
var ErrUnknownStep = errors.New("unknown step")

// ParseStep resolves a step name or alias.
func ParseStep(s string) (Step, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "-", "_")
	for i, st := range StepOrder {
		if string(st) == name {
			return StepOrder[i], nil
		}
	}
	if st, ok := stepAliases[name]; ok {
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStep, s)
}

func stepIndex(s Step) int {
	for i, st := range StepOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Selection is an immutable set of enabled steps. The zero value enables nothing.
type Selection struct {
	on [numSteps]bool
}

const numSteps = 7

// SelectAll returns a selection with every step enabled.
func SelectAll() Selection {
	var s Selection
	for i := range s.on {
		s.on[i] = true
	}
	return s
}

// NewSelection enables exactly the given steps.
func NewSelection(steps ...Step) Selection {
	var s Selection
	for _, st := range steps {
		if i := stepIndex(st); i >= 0 {
			s.on[i] = true
		}
	}
	return s
}

// ParseSelection builds a selection from step names or aliases. The special
// name "all" enables every step.
func ParseSelection(names []string) (Selection, error) {
	var s Selection
	for _, n := range names {
		if strings.EqualFold(strings.TrimSpace(n), "all") {
			return SelectAll(), nil
		}
		st, err := ParseStep(n)
		if err != nil {
			return Selection{}, err
		}
		s.on[stepIndex(st)] = true
	}
	return s, nil
}

// SelectionFromMap reads a step-name to enabled mapping. A true "select_all"
// key enables everything regardless of the other entries.
func SelectionFromMap(m map[string]bool) (Selection, error) {
	if m["select_all"] {
		return SelectAll(), nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var s Selection
	for _, k := range keys {
		if k == "select_all" {
			continue
		}
		st, err := ParseStep(k)
		if err != nil {
			return Selection{}, err
		}
		s.on[stepIndex(st)] = m[k]
	}
	return s, nil
}

// Enabled reports whether step runs.
func (s Selection) Enabled(step Step) bool {
	i := stepIndex(step)
	return i >= 0 && s.on[i]
}

// With returns a copy with step switched on or off.
func (s Selection) With(step Step, on bool) Selection {
	if i := stepIndex(step); i >= 0 {
		s.on[i] = on
	}
	return s
}

// Steps lists the enabled steps in execution order.
func (s Selection) Steps() []Step {
	var out []Step
	for i, st := range StepOrder {
		if s.on[i] {
			out = append(out, st)
		}
	}
	return out
}

// None reports whether no step is enabled.
func (s Selection) None() bool { return len(s.Steps()) == 0 }

func (s Selection) String() string {
	steps := s.Steps()
	if len(steps) == 0 {
		return "(none)"
	}
	names := make([]string, len(steps))
	for i, st := range steps {
		names[i] = string(st)
	}
	return strings.Join(names, ",")
}

// MarshalJSON encodes the enabled step names.
func (s Selection) MarshalJSON() ([]byte, error) {
	names := []string{}
	for _, st := range s.Steps() {
		names = append(names, string(st))
	}
	return json.Marshal(names)
}

// UnmarshalJSON accepts a list of step names or a name to bool object.
// A JSON null leaves s unchanged, the same as an absent field.
func (s *Selection) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		return nil
	}
	var names []string
	if err := json.Unmarshal(b, &names); err == nil {
		sel, err := ParseSelection(names)
		if err != nil {
			return err
		}
		*s = sel
		return nil
	}
	var m map[string]bool
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("selection: expected list of steps or object of booleans: %w", err)
	}
	sel, err := SelectionFromMap(m)
	if err != nil {
		return err
	}
	*s = sel
	return nil
}

// ParseOverrides reads "column=type" pairs. The column part may contain '='
// only before the last one.
func ParseOverrides(pairs []string) (map[string]ColumnType, error) {
	out := make(map[string]ColumnType, len(pairs))
	for _, p := range pairs {
		i := strings.LastIndex(p, "=")
		if i <= 0 {
			return nil, fmt.Errorf("invalid override %q (use column=type)", p)
		}
		t, err := ParseColumnType(p[i+1:])
		if err != nil {
			return nil, err
		}
		out[strings.TrimSpace(p[:i])] = t
	}
	return out, nil
}
