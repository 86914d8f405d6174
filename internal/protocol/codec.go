package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrEmptyType is returned by Decode for an envelope without a type tag.
var ErrEmptyType = errors.New("signaling message has no type")

// ErrTrailingData is returned by Decode when input continues after the
// message object.
var ErrTrailingData = errors.New("signaling message has trailing data")

// Encode serializes a Message into its single JSON wire form.
func Encode(msg Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, ErrEmptyType
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", msg.Type, err)
	}
	return data, nil
}

// Decode parses exactly one JSON wire message; anything but whitespace after
// it is rejected. Numbers inside the payload are kept as json.Number so that
// re-encoding reproduces them exactly. An empty payload decodes as nil.
func Decode(data []byte) (Message, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var msg Message
	if err := dec.Decode(&msg); err != nil {
		return Message{}, fmt.Errorf("decode signaling message: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Message{}, ErrTrailingData
	}
	if msg.Type == "" {
		return Message{}, ErrEmptyType
	}
	if len(msg.Payload) == 0 {
		msg.Payload = nil
	}
	return msg, nil
}
