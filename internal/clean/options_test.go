package clean

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelection(t *testing.T) {
	sel, err := ParseSelection([]string{"clean-column-names", "dup_fix", " FILL_MISSING "})
	require.NoError(t, err)
	assert.Equal(t, []Step{StepCleanColumnNames, StepFillMissing, StepRemoveDuplicates}, sel.Steps())

	sel, err = ParseSelection([]string{"fill_missing", "all"})
	require.NoError(t, err)
	assert.Equal(t, StepOrder, sel.Steps())

	_, err = ParseSelection([]string{"spellcheck"})
	assert.ErrorIs(t, err, ErrUnknownStep)

	sel, err = ParseSelection(nil)
	require.NoError(t, err)
	assert.True(t, sel.None())
	assert.Equal(t, "(none)", sel.String())
}

func TestSelectionJSON(t *testing.T) {
	b, err := json.Marshal(NewSelection(StepFlagOutliers, StepConvertNumeric))
	require.NoError(t, err)
	assert.JSONEq(t, `["convert_numeric","flag_outliers"]`, string(b))

	b, err = json.Marshal(Selection{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(b))

	var sel Selection
	require.NoError(t, json.Unmarshal([]byte(`{"date_fix": true, "text_fix": false}`), &sel))
	assert.Equal(t, []Step{StepConvertDates}, sel.Steps())

	require.NoError(t, json.Unmarshal([]byte(`{"select_all": true, "text_fix": false}`), &sel))
	assert.Equal(t, StepOrder, sel.Steps())

	assert.Error(t, json.Unmarshal([]byte(`42`), &sel))
	assert.ErrorIs(t, json.Unmarshal([]byte(`["nope"]`), &sel), ErrUnknownStep)
}

func TestSelectionNullKeepsValue(t *testing.T) {
	req := struct {
		Steps Selection `json:"steps"`
	}{Steps: SelectAll()}
	require.NoError(t, json.Unmarshal([]byte(`{"steps": null}`), &req))
	assert.Equal(t, StepOrder, req.Steps.Steps())

	sel := NewSelection(StepFillMissing)
	require.NoError(t, sel.UnmarshalJSON([]byte(" null ")))
	assert.Equal(t, []Step{StepFillMissing}, sel.Steps())
}

func TestSelectionWith(t *testing.T) {
	base := NewSelection(StepFillMissing)
	more := base.With(StepStandardizeText, true)
	assert.False(t, base.Enabled(StepStandardizeText))
	assert.True(t, more.Enabled(StepStandardizeText))
	assert.False(t, more.With(StepFillMissing, false).Enabled(StepFillMissing))
}

func TestParseOverrides(t *testing.T) {
	ov, err := ParseOverrides([]string{"Income=numeric", "a=b=date", " Joined = datetime", "notes=string"})
	require.NoError(t, err)
	assert.Equal(t, map[string]ColumnType{
		"Income": TypeNumeric,
		"a=b":    TypeDate,
		"Joined": TypeDate,
		"notes":  TypeText,
	}, ov)

	_, err = ParseOverrides([]string{"=numeric"})
	assert.Error(t, err)
	_, err = ParseOverrides([]string{"x=blob"})
	assert.ErrorIs(t, err, ErrUnknownColumnType)
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	bad := DefaultOptions()
	bad.SampleSize = 0
	bad.NumericFill = "max"
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample_size")
	assert.Contains(t, err.Error(), "numeric_fill")

	_, err = NewPipeline(bad, nil)
	assert.Error(t, err)
}

func TestRenderLog(t *testing.T) {
	assert.Equal(t, NoStepsMessage+"\n", RenderLog(nil))
	assert.Equal(t, "1. first\n2. second\n", RenderLog([]string{"first", "second"}))

	var nilLog *ChangeLog
	nilLog.Addf("ignored")
	assert.Zero(t, nilLog.Len())
}
