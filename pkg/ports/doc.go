/*
Package ports defines the driven ports (interfaces) of the moore engine.

These interfaces keep the turn executor independent of any particular model
vendor or prompt format.

# Key Interfaces

  - Provider: Sends one request to a language model and returns its structured reply.
  - RequestBuilder: Turns a state, the chat history and the user input into a provider request.
  - DistributedLocker: Serializes turns of one conversation across replicas.
*/
package ports
