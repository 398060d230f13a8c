package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplerWorkflow = `{
	"1": {"class_type": "CheckpointLoaderSimple", "inputs": {"ckpt_name": "sd15.safetensors"}},
	"3": {"class_type": "KSampler", "inputs": {"seed": 42, "steps": 20, "model": ["1", 0]},
	      "_meta": {"title": "Sampler", "node": {"x": 10, "y": 20}}, "is_changed": false}
}`

func TestDecodeFieldValue_Classification(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind ValueKind
	}{
		{"integer", `42`, ValueScalar},
		{"string", `"a cat"`, ValueScalar},
		{"null", `null`, ValueScalar},
		{"bool", `true`, ValueScalar},
		{"reference", `["4", 1]`, ValueReference},
		{"long reference", `["4", 1, "extra"]`, ValueReference},
		{"single element list", `["4"]`, ValueList},
		{"numeric list", `[1, 2]`, ValueList},
		{"empty list", `[]`, ValueList},
		{"object", `{"steps": 20}`, ValueMap},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fv, err := DecodeFieldValue(json.RawMessage(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.kind, fv.Kind)
		})
	}
}

func TestDecodeFieldValue_StringLeadingLiteralIsReadAsReference(t *testing.T) {
	fv, err := DecodeFieldValue(json.RawMessage(`["auto", 5]`))
	require.NoError(t, err)

	assert.Equal(t, ValueReference, fv.Kind)
	assert.Equal(t, Reference{SourceID: "auto", Slot: 5}, fv.Ref)
}

func TestDecodeFieldValue_NonIntegerSlot(t *testing.T) {
	fv, err := DecodeFieldValue(json.RawMessage(`["4", "x"]`))
	require.NoError(t, err)

	assert.Equal(t, ValueReference, fv.Kind)
	assert.Equal(t, -1, fv.Ref.Slot)
}

func TestDecodeFieldValue_NestedReference(t *testing.T) {
	fv, err := DecodeFieldValue(json.RawMessage(`{"sampler": {"model": ["7", 2], "steps": 30}}`))
	require.NoError(t, err)

	ref, ok := fv.Lookup([]string{"sampler", "model"})
	require.True(t, ok)
	assert.Equal(t, ValueReference, ref.Kind)
	assert.Equal(t, Reference{SourceID: "7", Slot: 2}, ref.Ref)

	steps, ok := fv.Lookup([]string{"sampler", "steps"})
	require.True(t, ok)
	v, err := steps.Scalar()
	require.NoError(t, err)
	assert.Equal(t, json.Number("30"), v)
}

func TestNewScalar_RejectsCompoundValues(t *testing.T) {
	_, err := NewScalar(map[string]any{"a": 1})
	assert.Error(t, err)

	_, err = NewScalar([]any{"1", 0})
	assert.Error(t, err)

	fv, err := NewScalar("hello")
	require.NoError(t, err)
	assert.True(t, fv.IsScalar())
	assert.JSONEq(t, `"hello"`, string(fv.Raw()))
}

func TestDecodeWorkflow(t *testing.T) {
	doc, err := DecodeWorkflow([]byte(samplerWorkflow))
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "3"}, doc.NodeIDs())

	sampler, ok := doc.Node("3")
	require.True(t, ok)
	assert.Equal(t, "KSampler", sampler.ClassType)
	assert.False(t, sampler.Malformed())
	require.NotNil(t, sampler.Meta)
	assert.Equal(t, "Sampler", sampler.Meta.Title)
	require.NotNil(t, sampler.Meta.X)
	assert.Equal(t, 10.0, *sampler.Meta.X)

	assert.Equal(t, []string{"seed", "steps"}, sampler.ScalarFields())

	seed, ok := doc.LookupField("3", "inputs/seed")
	require.True(t, ok)
	assert.True(t, seed.IsScalar())

	_, ok = doc.LookupField("3", "inputs/cfg")
	assert.False(t, ok)
	_, ok = doc.LookupField("9", "inputs/seed")
	assert.False(t, ok)
}

func TestDecodeWorkflow_RejectsNonObject(t *testing.T) {
	_, err := DecodeWorkflow([]byte(`[1, 2]`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedDocument)
}

func TestDecodeWorkflow_KeepsMalformedRecords(t *testing.T) {
	doc, err := DecodeWorkflow([]byte(`{
		"1": 5,
		"2": {"inputs": {"text": "hi"}},
		"3": {"class_type": "KSampler", "inputs": "oops"}
	}`))
	require.NoError(t, err)
	require.Len(t, doc.Nodes, 3)

	assert.Equal(t, []string{"node record is not an object"}, doc.Nodes["1"].Issues)
	assert.Equal(t, []string{"missing class_type"}, doc.Nodes["2"].Issues)
	assert.Equal(t, []string{"inputs is not an object"}, doc.Nodes["3"].Issues)
	assert.Nil(t, doc.Nodes["3"].Inputs)
}

func TestWorkflowDocument_RoundTrip(t *testing.T) {
	doc, err := DecodeWorkflow([]byte(samplerWorkflow))
	require.NoError(t, err)

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, samplerWorkflow, string(out))
}

func TestWorkflowDocument_RoundTripKeepsMalformedContent(t *testing.T) {
	const src = `{"1": 5, "2": {"class_type": 7, "inputs": "oops", "_meta": {"title": "x"}}}`
	doc, err := DecodeWorkflow([]byte(src))
	require.NoError(t, err)

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, src, string(out))
}

func TestWorkflowDocument_SetFieldOnClone(t *testing.T) {
	doc, err := DecodeWorkflow([]byte(samplerWorkflow))
	require.NoError(t, err)

	clone := doc.Clone()
	value, err := NewScalar(7)
	require.NoError(t, err)
	require.NoError(t, clone.SetField("3", "inputs/seed", value))

	changed, _ := clone.LookupField("3", "inputs/seed")
	original, _ := doc.LookupField("3", "inputs/seed")
	assert.JSONEq(t, `7`, string(changed.Raw()))
	assert.JSONEq(t, `42`, string(original.Raw()))

	assert.Error(t, clone.SetField("3", "inputs/missing", value))
	assert.Error(t, clone.SetField("9", "inputs/seed", value))
}

func TestSortNodeIDs(t *testing.T) {
	ids := []string{"10", "b", "2", "a", "1"}
	SortNodeIDs(ids)
	assert.Equal(t, []string{"1", "2", "10", "a", "b"}, ids)
}

func TestFieldPath_Keys(t *testing.T) {
	keys, err := FieldPath("inputs/sampler/steps").Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"sampler", "steps"}, keys)
	assert.Equal(t, "sampler/steps", FieldPath("inputs/sampler/steps").Field())
	assert.Equal(t, FieldPath("inputs/seed"), NewFieldPath("seed"))

	for _, bad := range []FieldPath{"", "inputs", "seed", "outputs/seed", "inputs//seed"} {
		_, err := bad.Keys()
		assert.ErrorIs(t, err, ErrMalformedPath, string(bad))
	}
}

func TestAssetEnvelope_WorkflowData(t *testing.T) {
	var env AssetEnvelope
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 12, "type": "workflow", "name": "wf",
		"data": {"workflow_json": {"1": {"class_type": "A", "inputs": {}}},
		         "parameters": {"prompt": {"node_id": "1", "field": "inputs/text"}}}
	}`), &env))

	assert.Equal(t, AssetID("12"), env.ID)
	data, err := env.WorkflowData()
	require.NoError(t, err)
	assert.Equal(t, ParameterRef{NodeID: "1", Field: "inputs/text"}, data.Parameters["prompt"])

	env.Type = AssetTypeImage
	_, err = env.WorkflowData()
	assert.ErrorIs(t, err, ErrNotWorkflowAsset)
}

func TestWorkflowDocument_ScalarFields(t *testing.T) {
	doc, err := DecodeWorkflow([]byte(samplerWorkflow))
	require.NoError(t, err)

	assert.Equal(t, []string{"seed", "steps"}, doc.ScalarFields("3"))
	assert.Equal(t, []string{"ckpt_name"}, doc.ScalarFields("1"))
	assert.Nil(t, doc.ScalarFields("99"))
}
