package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
)

// Envelope field names.
const (
	ContentField   = "content"
	ResponseField  = "response"
	NextStateField = "next_state"
)

// Schema is a map of field names to their expected types.
// Example: {"content": String(), "user_name": String(), "tags": Slice(String())}
type Schema map[string]Type

// JSONSchema returns a closed object schema where every field is required.
func (s Schema) JSONSchema() *jsonschema.Schema {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	props := jsonschema.NewProperties()
	for _, k := range keys {
		props.Set(k, s[k].JSONSchema())
	}
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             keys,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

// Default returns the response schema used when a state declares none: {content: string}.
func Default() *jsonschema.Schema {
	return Schema{ContentField: String()}.JSONSchema()
}

// Reflect derives an inline object schema from a Go struct prototype.
// Field names follow the json tags. Every property is required, omitempty
// included, as strict structured outputs reject partially required objects.
func Reflect(v any) (*jsonschema.Schema, error) {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("response model must be a struct, got %T", v)
	}

	r := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: false,
	}
	s := r.ReflectFromType(t)
	// The fragment is embedded into an envelope, so it must not carry root metadata.
	s.Version = ""
	s.ID = ""
	s.Definitions = nil
	requireAll(s)
	return s, nil
}

// requireAll marks every property of s and its nested objects as required.
func requireAll(s *jsonschema.Schema) {
	if s == nil {
		return
	}
	if s.Properties != nil && s.Properties.Len() > 0 {
		s.Required = s.Required[:0]
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			s.Required = append(s.Required, pair.Key)
			requireAll(pair.Value)
		}
	}
	requireAll(s.Items)
}

// Envelope wraps a response schema into the shape requested from the model:
//
//	{"response": <response>, "next_state": <one of choices>}
//
// The first choice is conventionally the current state, meaning "stay".
func Envelope(response *jsonschema.Schema, choices []string) *jsonschema.Schema {
	enum := make([]any, len(choices))
	for i, c := range choices {
		enum[i] = c
	}

	props := jsonschema.NewProperties()
	props.Set(ResponseField, response)
	props.Set(NextStateField, &jsonschema.Schema{
		Type:        "string",
		Enum:        enum,
		Description: "The state to transition to, or the current state to stay.",
	})
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             []string{ResponseField, NextStateField},
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

// lenientEnvelope checks the response strictly but lets next_state be any
// string or null, so undeclared targets reach the transition resolver.
func lenientEnvelope(response *jsonschema.Schema) *jsonschema.Schema {
	props := jsonschema.NewProperties()
	props.Set(ResponseField, response)
	props.Set(NextStateField, &jsonschema.Schema{
		AnyOf: []*jsonschema.Schema{{Type: "string"}, {Type: "null"}},
	})
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   []string{ResponseField},
	}
}

// Check validates a raw reply document against the envelope of response.
// Failures are reported as a *ReplyError.
func Check(response *jsonschema.Schema, raw []byte) error {
	if response == nil {
		response = Default()
	}
	schemaBytes, err := json.Marshal(lenientEnvelope(response))
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("validate reply: %w", err)
	}
	if result.Valid() {
		return nil
	}

	re := &ReplyError{}
	for _, e := range result.Errors() {
		re.Fields = append(re.Fields, &FieldError{
			Path:   e.Field(),
			Reason: e.Description(),
			Value:  e.Value(),
		})
	}
	return re
}

// Decode copies a decoded JSON object into out using json tags.
// Numbers are converted weakly, so float64 values fill int fields.
func Decode(input any, out any) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return d.Decode(input)
}
