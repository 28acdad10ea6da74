// Package handlers implements per-command server logic: the
// (version, command id) dispatch table, subcommand relay with a
// server-side-action whitelist, and the chat command registry (spec.md
// §4I).
package handlers

import "errors"

// Sentinel error taxonomy (spec.md §7's error-handling table, collapsed
// into stdlib-wrapped sentinels the way the teacher's
// internal/login/session_key.go does rather than a generic error
// framework).
var (
	// ErrPrecondition names a failed chat-command precondition gate
	// (privilege, version, in-game/in-lobby, cheats-enabled, leader-only).
	// ChatRegistry.Dispatch does not return it: a failed precondition
	// comes back as a reply string with a nil error.
	ErrPrecondition = errors.New("handlers: precondition failed")

	// ErrProtocolViolation marks a malformed or out-of-sequence command
	// (e.g. a lobby-movement command before handshake completes).
	ErrProtocolViolation = errors.New("handlers: protocol violation")

	// ErrAuthFailed wraps a license verification failure surfaced as a
	// handler-level error (the underlying license.Err* sentinel is
	// preserved via %w chaining).
	ErrAuthFailed = errors.New("handlers: authentication failed")

	// ErrResourceExhausted covers "no space in lobby", "inventory full",
	// and similar capacity failures surfaced to the dispatch loop.
	ErrResourceExhausted = errors.New("handlers: resource exhausted")

	// ErrDetectionFailed marks a BB key-detection or similar
	// identification failure (internal/crypto's ErrDetectionFailed
	// surfaces here wrapped, not duplicated).
	ErrDetectionFailed = errors.New("handlers: detection failed")

	// ErrUnknownCommand is returned by Dispatch when no handler is
	// registered for a (version, command) pair. Unlike the above, this is
	// not necessarily fatal — spec.md §4I commands are a fixed, known set,
	// so ReadLoop skips an unknown command without logging it rather than
	// disconnecting the client.
	ErrUnknownCommand = errors.New("handlers: no handler registered for command")
)
