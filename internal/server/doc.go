// Package server exposes the input engine over WebSocket.
//
// Each connection gets its own input.Handler, so one connection is one
// player. Clients send one JSON message per tick and receive the events the
// tick produced. Messages share an envelope:
//
//	{"type": "sample", "payload": {"time": "...", "buttons": {"jump": true}}}
//
// Client messages are "sample", "reset", "context" and "neutral". The server
// answers with "hello" on connect, "events" for every tick that produced
// events, "state" after a reset, and "error" for malformed messages.
package server
