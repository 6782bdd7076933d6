/*
Package moore is a state-constrained conversational agent engine.

A language model drives the conversation, but only inside a finite state
machine the developer declares up front. Every turn the model answers with a
structured reply that carries both its response and the next state it wants;
the engine honours the request only when the current state declares that
transition, and otherwise stays put. The model can steer, never escape.

# Concept

Each state has an instruction, an optional response schema, a transition table
(target state → natural-language condition) and an optional handler. The
handler sees the parsed reply and the transition decision before the cursor
moves, which makes it the natural place to copy verified data into the
machine's context.

# Key Features

  - Constrained Transitions: undeclared targets are logged and ignored, never followed.
  - Structured Replies: per-state JSON Schemas, declared with typed fields or reflected from Go structs.
  - Retryable Turns: provider failures leave cursor, context and history untouched.
  - Shared Context: a key/value store that survives transitions.
  - Observability: lifecycle hooks, slog logging and Prometheus metrics.

# Usage

	m := moore.New("START",
		moore.WithTerminalState("IDENTIFIED"),
		moore.WithProvider(openai.New(os.Getenv("OPENAI_API_KEY"))),
	)

	m.MustRegister(
		domain.State{
			ID:          "START",
			Prompt:      "Ask the user for their name.",
			Model:       UserIdentification{},
			Transitions: map[string]string{"IDENTIFIED": "The user told you their name"},
			Handler: func(ctx context.Context, s domain.Session, t domain.Turn) (any, error) {
				if t.Decision.Transitioned {
					var u UserIdentification
					if err := t.Reply.Decode(&u); err != nil {
						return nil, err
					}
					s.SetContextData("verified_user", u)
				}
				return t.Reply.Content, nil
			},
		},
		domain.State{ID: "IDENTIFIED", Prompt: "Thank the user."},
	)

	for !m.IsCompleted() {
		res, err := m.Run(ctx, readLine())
		if err != nil {
			// A failed turn can be retried from the same state.
			continue
		}
		fmt.Println(res.Payload)
	}

A Machine serves one conversation and must not be driven concurrently.
Use pkg/session to host many conversations behind a transport.
*/
package moore
