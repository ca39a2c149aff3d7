// Package fastpb implements a protobuf wire-format runtime driven
// entirely by data: one decoder, one encoder, and one in-memory record
// layout, all shared across every message type a schema declares. No
// message type gets its own generated Go code; compiling a schema (see
// internal/gen) produces a *table.Type value the shared decoder and
// encoder run against instead.
//
// Parsing is push-mode (see Decoder): callers feed it chunks of wire
// bytes in whatever sizes they arrive, and it never blocks or demands a
// specific chunk boundary. Finish reports whether what has been pushed so
// far amounts to a complete message.
package fastpb
