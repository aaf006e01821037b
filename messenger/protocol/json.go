package protocol

import (
	"bytes"
	"encoding/json"
)

// JSON encodes messages as JSON objects that match the webview's postMessage shape:
//
//	{"messageType": "...", "messageId": "...", "data": ..., "error": {...}, "reply": true}
var JSON Codec = jsonCodec{}

type jsonCodec struct{}

type jsonMessage struct {
	Type  string          `json:"messageType"`
	ID    string          `json:"messageId,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Fail           `json:"error,omitempty"`
	Reply bool            `json:"reply,omitempty"`
}

func (jsonCodec) Name() string { return `json` }

func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Encode(msg Message) ([]byte, error) {
	return json.Marshal(jsonMessage{
		Type:  msg.Type,
		ID:    msg.ID,
		Data:  msg.Data,
		Error: msg.Error,
		Reply: msg.Reply,
	})
}

func (jsonCodec) Decode(data []byte) (Message, error) {
	var wire jsonMessage
	err := json.Unmarshal(data, &wire)
	if err != nil {
		return Message{}, err
	}
	msg := Message{
		Type:  wire.Type,
		ID:    wire.ID,
		Error: wire.Error,
		Reply: wire.Reply,
	}
	if len(wire.Data) > 0 && !bytes.Equal(wire.Data, jsonNull) {
		msg.Data = wire.Data
	}
	return msg, nil
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	p, ok := v.(*any)
	if !ok {
		return json.Unmarshal(data, v)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	err := dec.Decode(&generic)
	if err != nil {
		return err
	}
	*p = fromJSON(generic)
	return nil
}

var jsonNull = []byte(`null`)
