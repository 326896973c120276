package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitroom/uniform-engine/uniform"
)

func TestNewPresetCatalog_LoadsBuiltins(t *testing.T) {
	catalog := NewPresetCatalog()
	assert.Equal(t, []string{"primary-day", "secondary-boarding"}, catalog.Names())
}

func TestEntries_ConvertsJSONToPolicyEntries(t *testing.T) {
	catalog := NewPresetCatalog()

	entries, err := catalog.Entries("primary-day")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	first := entries[0]
	assert.Equal(t, uniform.UniformID("shirt-white"), first.UniformID)
	assert.Equal(t, "White Shirt", first.UniformName)
	assert.Equal(t, "Junior", first.Level)
	assert.Equal(t, "Boys", first.Gender)
	assert.Equal(t, 3, first.QuantityPerStudent)
	assert.True(t, first.IsRequired)

	// Ids and timestamps are assigned by AddPolicyEntry, not the factory.
	for _, e := range entries {
		assert.Empty(t, e.ID)
		assert.True(t, e.CreatedAt.IsZero())
	}
}

func TestEntries_UnknownPreset(t *testing.T) {
	catalog := NewPresetCatalog()

	_, err := catalog.Entries("no-such-preset")
	assert.Error(t, err)
}

func TestRegister_AddsRuntimePreset(t *testing.T) {
	catalog := NewPresetCatalog()

	name, err := catalog.Register(`{
		"name": "kindergarten",
		"entries": [
			{"uniformId": "romper", "uniformName": "Romper", "uniformType": "romper",
			 "level": "Nursery", "gender": "Boys", "quantityPerStudent": 2, "isRequired": true}
		]
	}`)
	require.NoError(t, err)
	assert.Equal(t, "kindergarten", name)

	entries, err := catalog.Entries("kindergarten")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].QuantityPerStudent)
}

func TestRegister_Validation(t *testing.T) {
	catalog := NewPresetCatalog()

	_, err := catalog.Register(`not json`)
	assert.Error(t, err)

	_, err = catalog.Register(`{"entries": [{"uniformId": "x"}]}`)
	assert.Error(t, err, "name is required")

	_, err = catalog.Register(`{"name": "empty"}`)
	assert.Error(t, err, "entries are required")
}

func TestEntries_PassValidationWhenApplied(t *testing.T) {
	// Every built-in entry must survive AddPolicyEntry's validation.

	catalog := NewPresetCatalog()
	for _, name := range catalog.Names() {
		entries, err := catalog.Entries(name)
		require.NoError(t, err)

		school := uniform.School{ID: "sch-1"}
		for _, entry := range entries {
			school, err = uniform.AddPolicyEntry(school, entry, entry.CreatedAt)
			require.NoError(t, err, "preset %s entry %s", name, entry.UniformID)
		}
		assert.Len(t, school.UniformPolicy, len(entries))
	}
}
