/*
Package factory provides JSON to Go uniform-policy conversion.

PURPOSE:
  Converts JSON policy-set definitions into []uniform.PolicyEntry. This
  enables policy configuration without code changes - school administrators
  can define standard uniform sets in JSON, and the factory produces the
  entries applied to a school.

WHY JSON?
  - Non-developers can modify presets
  - Easy integration with an admin UI
  - Version control for preset definitions

JSON SCHEMA:
  {
    "name": "primary-day",
    "entries": [
      {
        "uniformId": "shirt-white",
        "uniformName": "White Shirt",
        "uniformType": "shirt",
        "level": "Junior",
        "gender": "Boys",
        "quantityPerStudent": 3,
        "isRequired": true
      }
    ]
  }

USAGE:
  catalog := factory.NewPresetCatalog()
  entries, err := catalog.Entries("primary-day")
  // apply via uniform.AddPolicyEntry

SEE ALSO:
  - uniform/policy.go: AddPolicyEntry validation
  - api/handlers.go: ApplyPolicyPreset endpoint
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kitroom/uniform-engine/uniform"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PresetJSON is the JSON representation of a named policy set.
type PresetJSON struct {
	Name    string      `json:"name"`
	Entries []EntryJSON `json:"entries"`
}

type EntryJSON struct {
	UniformID          string `json:"uniformId"`
	UniformName        string `json:"uniformName"`
	UniformType        string `json:"uniformType"`
	Level              string `json:"level"`
	Gender             string `json:"gender"`
	QuantityPerStudent int    `json:"quantityPerStudent"`
	IsRequired         bool   `json:"isRequired"`
}

// =============================================================================
// PRESET CATALOG
// =============================================================================

// PresetCatalog holds the built-in presets plus any registered at runtime.
type PresetCatalog struct {
	presets map[string]PresetJSON
}

func NewPresetCatalog() *PresetCatalog {
	c := &PresetCatalog{presets: make(map[string]PresetJSON)}
	for _, raw := range builtinPresets {
		// Built-ins are compiled in; a parse failure here is a programming
		// error, not an input error.
		var preset PresetJSON
		if err := json.Unmarshal([]byte(raw), &preset); err != nil {
			panic(fmt.Sprintf("factory: invalid builtin preset: %v", err))
		}
		c.presets[preset.Name] = preset
	}
	return c
}

// Register parses and adds a preset definition at runtime.
func (c *PresetCatalog) Register(rawJSON string) (string, error) {
	var preset PresetJSON
	if err := json.Unmarshal([]byte(rawJSON), &preset); err != nil {
		return "", fmt.Errorf("invalid preset JSON: %w", err)
	}
	if preset.Name == "" {
		return "", fmt.Errorf("preset name is required")
	}
	if len(preset.Entries) == 0 {
		return "", fmt.Errorf("preset %q has no entries", preset.Name)
	}
	c.presets[preset.Name] = preset
	return preset.Name, nil
}

// Names lists the available presets, sorted.
func (c *PresetCatalog) Names() []string {
	names := make([]string, 0, len(c.presets))
	for name := range c.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries converts the named preset into policy entries ready for
// uniform.AddPolicyEntry (which assigns ids and timestamps).
func (c *PresetCatalog) Entries(name string) ([]uniform.PolicyEntry, error) {
	preset, ok := c.presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", name)
	}

	entries := make([]uniform.PolicyEntry, 0, len(preset.Entries))
	for _, e := range preset.Entries {
		entries = append(entries, uniform.PolicyEntry{
			UniformID:          uniform.UniformID(e.UniformID),
			UniformName:        e.UniformName,
			UniformType:        e.UniformType,
			Level:              e.Level,
			Gender:             e.Gender,
			QuantityPerStudent: e.QuantityPerStudent,
			IsRequired:         e.IsRequired,
		})
	}
	return entries, nil
}

// =============================================================================
// BUILT-IN PRESETS
// =============================================================================

var builtinPresets = []string{
	`{
		"name": "primary-day",
		"entries": [
			{"uniformId": "shirt-white", "uniformName": "White Shirt", "uniformType": "shirt", "level": "Junior", "gender": "Boys", "quantityPerStudent": 3, "isRequired": true},
			{"uniformId": "shorts-grey", "uniformName": "Grey Shorts", "uniformType": "shorts", "level": "Junior", "gender": "Boys", "quantityPerStudent": 2, "isRequired": true},
			{"uniformId": "dress-check", "uniformName": "Checked Dress", "uniformType": "dress", "level": "Junior", "gender": "Girls", "quantityPerStudent": 3, "isRequired": true},
			{"uniformId": "sweater-navy", "uniformName": "Navy Sweater", "uniformType": "sweater", "level": "Junior", "gender": "Boys", "quantityPerStudent": 1, "isRequired": false},
			{"uniformId": "sweater-navy", "uniformName": "Navy Sweater", "uniformType": "sweater", "level": "Junior", "gender": "Girls", "quantityPerStudent": 1, "isRequired": false}
		]
	}`,
	`{
		"name": "secondary-boarding",
		"entries": [
			{"uniformId": "shirt-white", "uniformName": "White Shirt", "uniformType": "shirt", "level": "Senior", "gender": "Boys", "quantityPerStudent": 4, "isRequired": true},
			{"uniformId": "trousers-black", "uniformName": "Black Trousers", "uniformType": "trousers", "level": "Senior", "gender": "Boys", "quantityPerStudent": 3, "isRequired": true},
			{"uniformId": "blouse-white", "uniformName": "White Blouse", "uniformType": "blouse", "level": "Senior", "gender": "Girls", "quantityPerStudent": 4, "isRequired": true},
			{"uniformId": "skirt-black", "uniformName": "Black Skirt", "uniformType": "skirt", "level": "Senior", "gender": "Girls", "quantityPerStudent": 3, "isRequired": true},
			{"uniformId": "tracksuit", "uniformName": "Tracksuit", "uniformType": "sport", "level": "Senior", "gender": "Boys", "quantityPerStudent": 1, "isRequired": true},
			{"uniformId": "tracksuit", "uniformName": "Tracksuit", "uniformType": "sport", "level": "Senior", "gender": "Girls", "quantityPerStudent": 1, "isRequired": true}
		]
	}`,
}
