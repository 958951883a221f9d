// Package message defines the typed messages passed between the gateway's
// components: packets off the wire, commands validated from them, the
// sub-commands fanned out to MSC workers, the replies fanned back in, and
// the final and broadcast payloads sent back out.
package message

import "net"

// Packet is one inbound UDP datagram, tagged with the origin of the socket
// it arrived on and the moment it arrived. Origin is "cmd" for the command
// port or "msc_<id>" for a configured MSC endpoint.
type Packet struct {
	Payload   []byte
	Origin    string
	Sender    *net.UDPAddr
	Timestamp int64
}

// ValidatedCommand is a command packet that passed ingress validation:
// a JSON object with a string "command" field.
type ValidatedCommand struct {
	Command   map[string]any
	Sender    *net.UDPAddr
	RequestID string
}

// SubCommand is a validated command forwarded to one MSC target.
type SubCommand struct {
	Command   map[string]any
	RequestID string
	TargetID  string
}

// AgentReply is a response attributed to one MSC agent for one request id,
// either the MSC worker's optimistic local ack or a real classified reply.
type AgentReply struct {
	Response  map[string]any
	RequestID string
	AgentID   string
	Success   bool
}

// FinalResponse is the aggregated JSON document sent back to whoever sent
// the original command.
type FinalResponse struct {
	ResponseJSON []byte
	Destination  *net.UDPAddr
}

// Event is an MSC-originated JSON object lacking a request_id, destined for
// the broadcaster.
type Event struct {
	Data map[string]any
}
