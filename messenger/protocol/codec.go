package protocol

import "fmt"

// A Codec puts messages and their payloads on the wire.
type Codec interface {
	// Name identifies the codec in configuration and logs, such as "json" or "msgpack".
	Name() string

	// Binary is true if encoded messages are not valid UTF-8 text.
	Binary() bool

	// Encode encodes a message envelope; msg.Data must already be encoded with this codec.
	Encode(msg Message) ([]byte, error)

	// Decode decodes a message envelope.
	Decode(data []byte) (Message, error)

	// Marshal encodes a payload.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes a payload into v, which must be a pointer.  A nil or empty payload leaves v untouched.
	Unmarshal(data []byte, v any) error
}

// CodecNamed returns the codec with the given name.
func CodecNamed(name string) (Codec, error) {
	switch name {
	case ``, JSON.Name():
		return JSON, nil
	case MessagePack.Name():
		return MessagePack, nil
	default:
		return nil, fmt.Errorf(`unsupported codec %q`, name)
	}
}

// Transcode re-encodes a payload from one codec to another.  Payloads are returned unchanged if both codecs are the
// same.
func Transcode(from, to Codec, data []byte) ([]byte, error) {
	if from == to || len(data) == 0 {
		return data, nil
	}
	var v any
	err := from.Unmarshal(data, &v)
	if err != nil {
		return nil, fmt.Errorf(`%w while decoding %s payload`, err, from.Name())
	}
	return to.Marshal(v)
}
