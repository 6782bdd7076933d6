package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in       string
		wantName string
		wantJSON string
		wantErr  bool
	}{
		{"string", "string", `{"type":"string"}`, false},
		{"int", "int", `{"type":"integer"}`, false},
		{"float", "float", `{"type":"number"}`, false},
		{"bool", "bool", `{"type":"boolean"}`, false},
		{"[string]", "[string]", `{"items":{"type":"string"},"type":"array"}`, false},
		{"[[int]]", "[[int]]", `{"items":{"items":{"type":"integer"},"type":"array"},"type":"array"}`, false},
		{"enum(on|off)", "enum(on|off)", `{"type":"string","enum":["on","off"]}`, false},
		{"enum()", "", "", true},
		{"map", "", "", true},
		{"[map]", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			typ, err := ParseType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, typ.Name())

			got, err := json.Marshal(typ.JSONSchema())
			require.NoError(t, err)
			assert.JSONEq(t, tt.wantJSON, string(got))
		})
	}
}

func TestParseTypeMap_Error(t *testing.T) {
	_, err := ParseTypeMap(map[string]string{"content": "string", "age": "integer"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field age")
}

func TestSchema_YAMLRoundTrip(t *testing.T) {
	var doc struct {
		Schema Schema `yaml:"schema"`
	}
	src := "schema:\n  content: string\n  tags: \"[string]\"\n  mood: enum(happy|sad)\n"
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))

	require.Len(t, doc.Schema, 3)
	assert.Equal(t, "[string]", doc.Schema["tags"].Name())
	assert.Equal(t, "enum(happy|sad)", doc.Schema["mood"].Name())

	out, err := yaml.Marshal(doc)
	require.NoError(t, err)

	var again struct {
		Schema Schema `yaml:"schema"`
	}
	require.NoError(t, yaml.Unmarshal(out, &again))
	assert.Equal(t, doc.Schema["mood"].Name(), again.Schema["mood"].Name())
}

func TestSchema_JSONRoundTrip(t *testing.T) {
	s := Schema{"content": String(), "age": Int()}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":"string","age":"int"}`, string(data))

	var back Schema
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "int", back["age"].Name())
}
