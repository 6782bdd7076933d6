/*
Package session keeps one Machine per conversation.

A Machine is not safe for concurrent use, so the Manager serializes turns of
the same conversation with a per-session slot, and optionally with a
distributed lock when several replicas serve the same conversations.
Different conversations run in parallel.
*/
package session
