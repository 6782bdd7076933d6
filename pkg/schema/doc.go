// Package schema describes the structured replies requested from a model.
//
// Response fields are declared with a small type system (string, int, float,
// bool, enums and slices) or reflected from a Go struct, and rendered as
// JSON Schema. Every turn asks the model for an envelope that pairs the
// response with the chosen next state:
//
//	resp := schema.Schema{
//	    "content":   schema.String(),
//	    "user_name": schema.String(),
//	}.JSONSchema()
//
//	env := schema.Envelope(resp, []string{"START", "IDENTIFIED"})
//
// Replies are validated with Check before they reach the engine, and decoded
// into Go values with Decode:
//
//	if err := schema.Check(resp, raw); err != nil {
//	    // malformed reply
//	}
//
// Schemas can also be parsed from type strings, which is how machine
// definition files declare them:
//
//	s, err := schema.ParseTypeMap(map[string]string{
//	    "content": "string",
//	    "tags":    "[string]",
//	})
package schema
