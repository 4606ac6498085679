package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"89 FR 1234"`, "89 FR 1234"},
		{`20240118`, "20240118"},
		{`2.9`, "2.9"},
		{`-7`, "-7"},
		{`true`, "true"},
		{`null`, ""},
		{``, ""},
		{`""`, ""},
		{`[1,2,3]`, `[1,2,3]`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FlexibleStringValue(json.RawMessage(tt.input)), "input %s", tt.input)
	}
}

func TestFlexString(t *testing.T) {
	var v struct {
		Date     FlexString `json:"date"`
		Citation FlexString `json:"citation"`
		Missing  FlexString `json:"missing"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date": 2025, "citation": "89 FR 1234", "missing": null}`), &v))
	assert.Equal(t, FlexString("2025"), v.Date)
	assert.Equal(t, FlexString("89 FR 1234"), v.Citation)
	assert.Empty(t, v.Missing)

	err := json.Unmarshal([]byte(`{"date": {"year": 2025}}`), &v)
	assert.ErrorContains(t, err, "expected a scalar")
}

func TestFlexStrings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  FlexStrings
	}{
		{name: "strings", input: `["telehealth", "billing"]`, want: FlexStrings{"telehealth", "billing"}},
		{name: "mixed", input: `["RVU", 2025, null]`, want: FlexStrings{"RVU", "2025"}},
		{name: "single scalar", input: `"telehealth"`, want: FlexStrings{"telehealth"}},
		{name: "null", input: `null`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got FlexStrings
			require.NoError(t, json.Unmarshal([]byte(tt.input), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}
