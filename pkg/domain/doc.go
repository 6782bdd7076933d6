/*
Package domain contains the core models of the moore engine.

It defines the declarative building blocks of a state-constrained conversation:
the states a developer registers, the structured replies a model returns, the
decisions the resolver derives from them and the results a turn produces.
Apart from the response schema types, the package has no I/O and no
transport concerns.

# Key Entities

  - State: A named conversation state (instruction, response schema, transition table, handler).
  - Reply: The structured reply of the model for one turn.
  - Decision: The resolved outcome of a reply's transition request.
  - Turn: Everything a handler is told about the turn in progress.
  - RunResult: What a completed turn hands back to the caller.
  - Session: The view of a running machine that handlers receive.
*/
package domain
