package protocol

import "reflect"

// An Entry describes one message type in a protocol table.
type Entry interface {
	MessageType() string
	RequestType() reflect.Type
	ResponseType() reflect.Type
}

// A Def is the canonical definition of a message type: its name, the type of its request payload, and the type of
// its response payload.  Every table that lists a message type refers to the same Def, so the request and response
// shapes cannot drift between directions.
type Def[I, O any] struct {
	Name string
}

// Define declares a message type.
func Define[I, O any](name string) Def[I, O] { return Def[I, O]{Name: name} }

// MessageType implements Entry.
func (def Def[I, O]) MessageType() string { return def.Name }

// RequestType implements Entry.
func (Def[I, O]) RequestType() reflect.Type { return reflect.TypeFor[I]() }

// ResponseType implements Entry.
func (Def[I, O]) ResponseType() reflect.Type { return reflect.TypeFor[O]() }

// Same reports whether two entries describe the same message type with the same shapes.
func Same(a, b Entry) bool {
	return a.MessageType() == b.MessageType() &&
		a.RequestType() == b.RequestType() &&
		a.ResponseType() == b.ResponseType()
}

// Empty is the payload of messages that carry no data.
type Empty struct{}
