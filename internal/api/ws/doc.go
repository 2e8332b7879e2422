// Package ws streams notebook session events to hosts over WebSocket.
//
// A connection subscribes to the event bus, optionally filtered with
// ?kinds=focus-gained,session-error. Hosts may also report view focus
// and send application-level pings on the same socket.
package ws
