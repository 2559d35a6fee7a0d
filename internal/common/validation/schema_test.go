package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const widgetSchema = `{
  "type": "object",
  "required": ["name", "price"],
  "properties": {
    "name":  {"type": "string", "minLength": 1},
    "price": {"type": "number", "minimum": 0},
    "kind":  {"type": "string", "enum": ["a", "b"]}
  }
}`

type widget struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Kind  string  `json:"kind,omitempty"`
}

func TestSchema_Validate(t *testing.T) {
	schema := MustCompile("widget", widgetSchema)
	assert.Equal(t, "widget", schema.Name())

	tests := []struct {
		name       string
		value      interface{}
		valid      bool
		errorField string
	}{
		{name: "valid struct", value: widget{Name: "Router", Price: 10}, valid: true},
		{name: "valid map", value: map[string]interface{}{"name": "x", "price": 0}, valid: true},
		{name: "empty name", value: widget{Name: "", Price: 1}, valid: false, errorField: "name"},
		{name: "negative price", value: widget{Name: "x", Price: -1}, valid: false, errorField: "price"},
		{name: "bad enum", value: widget{Name: "x", Price: 1, Kind: "c"}, valid: false, errorField: "kind"},
		{name: "missing required", value: map[string]interface{}{"name": "x"}, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := schema.Validate(tt.value)
			assert.Equal(t, tt.valid, result.Valid, result.GetErrorMessages())
			if !tt.valid {
				require.NotEmpty(t, result.Errors)
				if tt.errorField != "" {
					fields := make([]string, len(result.Errors))
					for i, e := range result.Errors {
						fields[i] = e.Field
					}
					assert.Contains(t, fields, tt.errorField)
				}
			}
		})
	}
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile("broken", `{"type": 12}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	assert.Panics(t, func() { MustCompile("broken", `not json`) })
}
