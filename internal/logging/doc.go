// Package logging configures slog for corpusrank: JSON records written to a
// size-rotated file under ~/.corpusrank/logs, optionally mirrored to stderr.
//
// The serve command must never log to stdout or stderr because stdout
// carries MCP JSON-RPC frames; it uses StderrOff.
package logging
