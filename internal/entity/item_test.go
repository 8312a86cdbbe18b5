package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastcalorie/nutridb/constants"
)

func TestMergePatchUpdatesOnlyGivenKeys(t *testing.T) {
	cal := 500
	serving := "1 bowl"
	item := ExtractedItem{
		Name:        "Chili",
		Category:    "Soups",
		ServingSize: &serving,
		Calories:    &cal,
		Confidence:  constants.ConfidenceHigh,
	}

	out, err := item.MergePatch([]byte(`{"calories": 480, "category": "Entrees"}`))
	require.NoError(t, err)

	require.NotNil(t, out.Calories)
	assert.Equal(t, 480, *out.Calories)
	assert.Equal(t, "Entrees", out.Category)
	// Untouched keys survive.
	assert.Equal(t, "Chili", out.Name)
	require.NotNil(t, out.ServingSize)
	assert.Equal(t, "1 bowl", *out.ServingSize)
	assert.Equal(t, constants.ConfidenceHigh, out.Confidence)
}

func TestMergePatchExplicitNullClears(t *testing.T) {
	sodium := 840.0
	item := ExtractedItem{Name: "Wrap", Category: "Wraps", SodiumMg: &sodium}

	out, err := item.MergePatch([]byte(`{"sodiumMg": null}`))
	require.NoError(t, err)
	assert.Nil(t, out.SodiumMg)
}

func TestMergePatchEmptyObjectIsNoop(t *testing.T) {
	cal := 300
	item := ExtractedItem{Name: "Taco", Category: "Tacos", Calories: &cal}

	out, err := item.MergePatch([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, item, out)
}

func TestMergePatchRejectsMalformedInput(t *testing.T) {
	item := ExtractedItem{Name: "Taco"}

	_, err := item.MergePatch([]byte(`not json`))
	assert.Error(t, err)

	_, err = item.MergePatch([]byte(`{"calories": "lots"}`))
	assert.Error(t, err)
}

func TestMergePatchDoesNotMutateReceiver(t *testing.T) {
	cal := 500
	item := ExtractedItem{Name: "Burrito", Category: "Burritos", Calories: &cal}

	_, err := item.MergePatch([]byte(`{"calories": 700, "name": "Mega Burrito"}`))
	require.NoError(t, err)
	assert.Equal(t, "Burrito", item.Name)
	assert.Equal(t, 500, *item.Calories)
}
