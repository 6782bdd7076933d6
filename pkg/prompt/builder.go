// Package prompt builds the provider request for a turn.
//
// The state instruction is rendered as a text/template against the context
// data, then followed by a description of the transitions available from the
// current state. The chat history and the user input complete the request.
package prompt

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"text/template"
	"text/template/parse"

	"github.com/aretw0/moore/pkg/domain"
	"github.com/aretw0/moore/pkg/schema"
)

// Builder is the default ports.RequestBuilder.
type Builder struct {
	funcs       template.FuncMap
	strict      bool
	defaultTemp *float64
}

// Option configures a Builder.
type Option func(*Builder)

// WithFuncs adds template functions available to state prompts.
func WithFuncs(funcs template.FuncMap) Option {
	return func(b *Builder) {
		for k, v := range funcs {
			b.funcs[k] = v
		}
	}
}

// WithStrictTemplates makes a prompt that references a missing context key fail
// instead of rendering an empty value.
func WithStrictTemplates() Option {
	return func(b *Builder) {
		b.strict = true
	}
}

// WithDefaultTemperature applies t to states that do not declare a temperature.
func WithDefaultTemperature(t float64) Option {
	return func(b *Builder) {
		b.defaultTemp = &t
	}
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		funcs: template.FuncMap{
			"default": func(def, v any) any {
				if v == nil || v == "" {
					return def
				}
				return v
			},
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build implements ports.RequestBuilder.
func (b *Builder) Build(ctx context.Context, in domain.PromptInput) (domain.Request, error) {
	state := in.State

	// 1. Render the instruction against the context data.
	instruction, err := b.Render(state.ID, state.Prompt, in.Session.ContextSnapshot())
	if err != nil {
		return domain.Request{}, err
	}
	if state.PreProcessPrompt != nil {
		if v := state.PreProcessPrompt(instruction, in.Session); v != "" {
			instruction = v
		}
	}

	// 2. Describe the legal moves.
	instruction += Transitions(state)

	// 3. Assemble the conversation.
	messages := make([]domain.Message, 0, len(in.History)+2)
	messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: instruction})
	messages = append(messages, in.History...)
	messages = append(messages, domain.Message{Role: domain.RoleUser, Content: in.Input})
	if state.PreProcessChat != nil {
		if v := state.PreProcessChat(messages, in.Session); len(v) > 0 {
			messages = v
		}
	}

	response := in.Response
	if response == nil {
		response = schema.Default()
	}

	temp := state.Temperature
	if temp == nil {
		temp = b.defaultTemp
	}

	return domain.Request{
		StateID:     state.ID,
		Model:       in.Model,
		Instruction: instruction,
		Messages:    messages,
		Schema:      schema.Envelope(response, append([]string{state.ID}, state.Targets()...)),
		Temperature: temp,
	}, nil
}

// Render executes a prompt template against data.
func (b *Builder) Render(name, text string, data map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl := template.New(name).Funcs(b.funcs)
	if b.strict {
		tmpl = tmpl.Option("missingkey=error")
	} else {
		tmpl = tmpl.Option("missingkey=zero")
	}
	tmpl, err := tmpl.Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse prompt of state %q: %w", name, err)
	}

	if !b.strict && tmpl.Tree != nil {
		// missingkey=zero prints absent map keys as "<no value>".
		for _, path := range printedFields(tmpl.Tree.Root, true, nil) {
			data, _ = fillMissing(data, path)
		}
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render prompt of state %q: %w", name, err)
	}
	return sb.String(), nil
}

// printedFields collects the context paths printed directly by actions such
// as {{ .user.name }} or {{ $.name }}. Paths relative to dot are collected
// only while dot is the root data.
func printedFields(node parse.Node, atRoot bool, paths [][]string) [][]string {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return paths
		}
		for _, child := range n.Nodes {
			paths = printedFields(child, atRoot, paths)
		}
	case *parse.ActionNode:
		if path := printedPath(n.Pipe, atRoot); path != nil {
			paths = append(paths, path)
		}
	case *parse.IfNode:
		paths = printedFields(n.List, atRoot, paths)
		paths = printedFields(n.ElseList, atRoot, paths)
	case *parse.RangeNode:
		paths = printedFields(n.List, false, paths)
		paths = printedFields(n.ElseList, atRoot, paths)
	case *parse.WithNode:
		paths = printedFields(n.List, false, paths)
		paths = printedFields(n.ElseList, atRoot, paths)
	}
	return paths
}

func printedPath(pipe *parse.PipeNode, atRoot bool) []string {
	if pipe == nil || len(pipe.Decl) > 0 || len(pipe.Cmds) != 1 || len(pipe.Cmds[0].Args) != 1 {
		return nil
	}
	switch arg := pipe.Cmds[0].Args[0].(type) {
	case *parse.FieldNode:
		if atRoot {
			return arg.Ident
		}
	case *parse.VariableNode:
		if len(arg.Ident) > 1 && arg.Ident[0] == "$" {
			return arg.Ident[1:]
		}
	}
	return nil
}

// fillMissing sets the last key of path to "" when every parent on the path
// is a map and the key is absent or nil. Maps are copied before they are
// changed.
func fillMissing(data map[string]any, path []string) (map[string]any, bool) {
	key := path[0]
	v, ok := data[key]
	if len(path) == 1 {
		if ok && v != nil {
			return data, false
		}
		out := maps.Clone(data)
		if out == nil {
			out = make(map[string]any, 1)
		}
		out[key] = ""
		return out, true
	}
	nested, isMap := v.(map[string]any)
	if !isMap {
		return data, false
	}
	filled, changed := fillMissing(nested, path[1:])
	if !changed {
		return data, false
	}
	out := maps.Clone(data)
	out[key] = filled
	return out, true
}
