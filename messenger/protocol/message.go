// Package protocol defines the wire contract shared by the webview, the IDE host and the core process: the message
// envelope, the codecs that put it on a transport, and the tables of message types each endpoint may send.
package protocol

// A Message is the envelope exchanged between two endpoints.
type Message struct {
	// Type names the semantic operation and selects the handler on the receiving side.
	Type string

	// ID correlates a response with its request.  It is empty for fire-and-forget messages, which never produce a
	// response.
	ID string

	// Data contains the codec-encoded payload, which may be nil.  Its shape depends on Type and on whether this is
	// the request or the response.
	Data []byte

	// Error is set on a response when the remote handler failed.
	Error *Fail

	// Reply is set on every response.  Receivers use it to recognize a response that no longer has a waiter so it is
	// dropped instead of being treated as a new request.
	Reply bool
}

// Oneway returns true if the message does not expect a response.
func (msg *Message) Oneway() bool { return msg.ID == `` && !msg.Reply }
