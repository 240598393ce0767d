package p2p

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jiji-chain/jiji-go/config"
)

// lengthPrefixSize is the width of the big-endian length prefix in front
// of every framed message.
const lengthPrefixSize = 4

// encodeMessage serializes msg as length-prefixed JSON: [4-byte
// big-endian length][JSON bytes].
func encodeMessage(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("p2p: marshal message: %w", err)
	}
	if len(body) > config.MaxMessageSize {
		return nil, fmt.Errorf("p2p: message too large: %d bytes", len(body))
	}
	out := make([]byte, lengthPrefixSize+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(body)))
	copy(out[lengthPrefixSize:], body)
	return out, nil
}

// writeMessage writes msg to w in full, including its length prefix.
func writeMessage(w io.Writer, msg Message) error {
	data, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// readMessage reads one length-prefixed message from r.
func readMessage(r io.Reader) (Message, error) {
	header := make([]byte, lengthPrefixSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return Message{}, err
	}
	length := binary.BigEndian.Uint32(header)
	if int(length) > config.MaxMessageSize {
		return Message{}, fmt.Errorf("p2p: message too large: %d bytes", length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, err
	}
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("p2p: unmarshal message: %w", err)
	}
	return msg, nil
}
