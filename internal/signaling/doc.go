// Package signaling contains the room registry and message routing engine of
// the relay: WebSocket clients join a room, and frames they send are ferried
// either to one named room member or to every other member.
//
// The relay treats message payloads as opaque; it stamps sender identity and
// a server timestamp, and never inspects SDP or candidate contents.
package signaling
