package nakama

import (
	"encoding/json"
	"fmt"
	"strconv"

	"xidach-lite/apps/server/internal/codec"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// decodePayload reads the optional body of a match message. The op code
// already names the action, so an empty body is valid. JSON bodies start
// with '{'; anything else is a protobuf Struct.
func decodePayload(data []byte) (codec.ClientMessage, error) {
	var msg codec.ClientMessage
	if len(data) == 0 {
		return msg, nil
	}
	if data[0] != '{' {
		var s structpb.Struct
		if err := proto.Unmarshal(data, &s); err != nil {
			return msg, fmt.Errorf("%w: %v", codec.ErrBadMessage, err)
		}
		raw, err := json.Marshal(s.AsMap())
		if err != nil {
			return msg, fmt.Errorf("%w: %v", codec.ErrBadMessage, err)
		}
		data = raw
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", codec.ErrBadMessage, err)
	}
	return msg, nil
}

// formatFromMetadata picks the push encoding a client asked for at join.
func formatFromMetadata(metadata map[string]string) codec.Format {
	if metadata["format"] == "proto" {
		return codec.FormatProto
	}
	return codec.FormatJSON
}

// marshalLabel renders the match label as JSON through protojson so the
// Nakama query engine can index it.
func marshalLabel(game, name, phase string, open int) (string, error) {
	s, err := structpb.NewStruct(map[string]interface{}{
		"game":  game,
		"name":  name,
		"open":  open,
		"phase": phase,
	})
	if err != nil {
		return "", err
	}
	b, err := (&protojson.MarshalOptions{EmitUnpopulated: true}).Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func paramString(params map[string]interface{}, key string) string {
	switch v := params[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

// paramInt accepts the numeric shapes MatchCreate params arrive in.
func paramInt(params map[string]interface{}, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}
