package replay

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Encode serializes a tape for storage.
func Encode(tape *Tape) ([]byte, error) {
	return json.Marshal(tape)
}

// Decode parses a stored tape.
func Decode(data []byte) (*Tape, error) {
	var tape Tape
	if err := json.Unmarshal(data, &tape); err != nil {
		return nil, fmt.Errorf("decode tape: %w", err)
	}
	return &tape, nil
}

// EncodeB64 is Encode for text transports.
func EncodeB64(tape *Tape) (string, error) {
	data, err := Encode(tape)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func DecodeB64(s string) (*Tape, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode tape base64: %w", err)
	}
	return Decode(data)
}
