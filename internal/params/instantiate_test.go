package params

import (
	"testing"

	"studio/internal/api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_WritesValuesIntoCopy(t *testing.T) {
	doc := loadDoc(t)
	table := NewTable()
	require.NoError(t, table.Bind(doc, "prompt", "2", "inputs/text"))
	require.NoError(t, table.Bind(doc, "seed", "3", "inputs/seed"))
	require.NoError(t, table.Bind(doc, "denoise", "3", "inputs/advanced/denoise"))

	out, err := Apply(doc, table, map[string]any{
		"prompt":  "a dog",
		"seed":    7,
		"denoise": 0.6,
	})
	require.NoError(t, err)

	text, _ := out.LookupField("2", "inputs/text")
	seed, _ := out.LookupField("3", "inputs/seed")
	denoise, _ := out.LookupField("3", "inputs/advanced/denoise")
	assert.JSONEq(t, `"a dog"`, string(text.Raw()))
	assert.JSONEq(t, `7`, string(seed.Raw()))
	assert.JSONEq(t, `0.6`, string(denoise.Raw()))

	original, _ := doc.LookupField("3", "inputs/seed")
	assert.JSONEq(t, `42`, string(original.Raw()))

	// references are carried over untouched
	model, _ := out.LookupField("3", "inputs/model")
	assert.JSONEq(t, `["4", 0]`, string(model.Raw()))
}

func TestApply_Errors(t *testing.T) {
	doc := loadDoc(t)
	table, _ := FromParameters(nil)
	require.NoError(t, table.Bind(doc, "seed", "3", "inputs/seed"))

	_, err := Apply(doc, table, map[string]any{"unknown": 1})
	assert.ErrorIs(t, err, ErrUnknownParameter)

	_, err = Apply(doc, table, map[string]any{"seed": []int{1, 2}})
	assert.ErrorIs(t, err, ErrInvalidValue)

	broken, _ := FromParameters(models.Parameters{"model": {NodeID: "3", Field: "inputs/model"}})
	_, err = Apply(doc, broken, map[string]any{"model": "x"})
	assert.ErrorIs(t, err, ErrBrokenBinding)
}
