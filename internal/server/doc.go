// Package server implements the real-time messaging core of friendchat: the
// token-gated WebSocket upgrade, per-connection sessions, deterministic
// pairwise room keys, and the room registry that fans messages out to room
// members.
//
// The implementation is organized into specialized files for configuration,
// the registry, sessions, routing, and HTTP handlers to keep the codebase
// maintainable and testable as the project grows.
package server
