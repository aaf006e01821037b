package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tinylib/msgp/msgp"
)

// MessagePack encodes messages as a MessagePack tuple of [type, id, data, error, reply].  Payloads that implement
// msgp.Marshaler and msgp.Unmarshaler are encoded directly, anything else is bridged through its JSON form so the same
// struct tags govern both codecs.
var MessagePack Codec = msgpackCodec{}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return `msgpack` }

func (msgpackCodec) Binary() bool { return true }

func (msgpackCodec) Encode(msg Message) ([]byte, error) {
	b := make([]byte, 0, 16+len(msg.Type)+len(msg.ID)+len(msg.Data))
	b = msgp.AppendArrayHeader(b, 5)
	b = msgp.AppendString(b, msg.Type)
	b = msgp.AppendString(b, msg.ID)
	if len(msg.Data) == 0 {
		b = msgp.AppendNil(b)
	} else {
		b = append(b, msg.Data...)
	}
	if msg.Error == nil {
		b = msgp.AppendNil(b)
	} else {
		b = msgp.AppendArrayHeader(b, 2)
		b = msgp.AppendInt(b, msg.Error.Code)
		b = msgp.AppendString(b, msg.Error.Message)
	}
	b = msgp.AppendBool(b, msg.Reply)
	return b, nil
}

func (msgpackCodec) Decode(data []byte) (msg Message, err error) {
	sz, o, err := msgp.ReadArrayHeaderBytes(data)
	if err != nil {
		return
	}
	if sz != 5 {
		err = fmt.Errorf(`expected a 5 element message, got %v elements`, sz)
		return
	}
	msg.Type, o, err = msgp.ReadStringBytes(o)
	if err != nil {
		return
	}
	msg.ID, o, err = msgp.ReadStringBytes(o)
	if err != nil {
		return
	}
	if msgp.IsNil(o) {
		o, err = msgp.ReadNilBytes(o)
	} else {
		var raw msgp.Raw
		o, err = raw.UnmarshalMsg(o)
		msg.Data = []byte(raw)
	}
	if err != nil {
		return
	}
	if msgp.IsNil(o) {
		o, err = msgp.ReadNilBytes(o)
	} else {
		msg.Error, o, err = readFail(o)
	}
	if err != nil {
		return
	}
	msg.Reply, _, err = msgp.ReadBoolBytes(o)
	return
}

func readFail(b []byte) (*Fail, []byte, error) {
	sz, o, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, b, err
	}
	if sz != 2 {
		return nil, b, fmt.Errorf(`expected a 2 element error, got %v elements`, sz)
	}
	var fail Fail
	fail.Code, o, err = msgp.ReadIntBytes(o)
	if err != nil {
		return nil, b, err
	}
	fail.Message, o, err = msgp.ReadStringBytes(o)
	if err != nil {
		return nil, b, err
	}
	return &fail, o, nil
}

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case msgp.Marshaler:
		return v.MarshalMsg(nil)
	}
	js, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(js))
	dec.UseNumber()
	var generic any
	err = dec.Decode(&generic)
	if err != nil {
		return nil, err
	}
	return msgp.AppendIntf(nil, fromJSON(generic))
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 || msgp.IsNil(data) {
		return nil
	}
	if u, ok := v.(msgp.Unmarshaler); ok {
		_, err := u.UnmarshalMsg(data)
		return err
	}
	if p, ok := v.(*any); ok {
		generic, _, err := msgp.ReadIntfBytes(data)
		if err != nil {
			return err
		}
		*p = generic
		return nil
	}
	var buf bytes.Buffer
	_, err := msgp.UnmarshalAsJSON(&buf, data)
	if err != nil {
		return fmt.Errorf(`%w while converting payload to JSON`, err)
	}
	return json.Unmarshal(buf.Bytes(), v)
}

// fromJSON replaces json.Number values so integers stay integers when they reach MessagePack.
func fromJSON(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(v.String(), 10, 64); err == nil {
			return u
		}
		f, _ := v.Float64()
		return f
	case map[string]any:
		for key, item := range v {
			v[key] = fromJSON(item)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = fromJSON(item)
		}
		return v
	default:
		return v
	}
}
