//go:build js && wasm

package main

import (
	"encoding/json"
	"errors"
	"strings"
	"syscall/js"

	"xidach-lite/replay"
)

type verifyRequest struct {
	// Tape is the stored JSON tape; TapeB64 is the same bytes base64 encoded.
	Tape    *replay.Tape `json:"tape,omitempty"`
	TapeB64 string       `json:"tape_b64,omitempty"`
}

type verifyResponse struct {
	OK     bool                 `json:"ok"`
	Result []replay.SeatOutcome `json:"result,omitempty"`
	Error  *replay.ReplayError  `json:"error,omitempty"`
}

func main() {
	js.Global().Set("__replayVerify", js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) < 1 {
			return mustJSON(verifyResponse{
				OK:    false,
				Error: &replay.ReplayError{StepIndex: -1, Reason: "invalid_request", Message: "missing request payload"},
			})
		}
		raw := args[0].String()
		resp := handleVerify(raw)
		return mustJSON(resp)
	}))

	select {}
}

// handleVerify re-runs a recorded round in the browser and returns the
// recomputed settlement next to the verdict.
func handleVerify(raw string) verifyResponse {
	var req verifyRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return verifyResponse{
			OK:    false,
			Error: &replay.ReplayError{StepIndex: -1, Reason: "invalid_json", Message: err.Error()},
		}
	}
	tape := req.Tape
	if tape == nil && strings.TrimSpace(req.TapeB64) != "" {
		decoded, err := replay.DecodeB64(req.TapeB64)
		if err != nil {
			return verifyResponse{
				OK:    false,
				Error: &replay.ReplayError{StepIndex: -1, Reason: "invalid_tape", Message: err.Error()},
			}
		}
		tape = decoded
	}

	rr, err := replay.Run(tape)
	if err == nil {
		err = replay.Verify(tape)
	}
	if err != nil {
		var replayErr *replay.ReplayError
		if errors.As(err, &replayErr) {
			return verifyResponse{OK: false, Error: replayErr}
		}
		return verifyResponse{
			OK:    false,
			Error: &replay.ReplayError{StepIndex: -1, Reason: "replay_failed", Message: err.Error()},
		}
	}
	return verifyResponse{
		OK:     true,
		Result: replay.OutcomesFromResult(rr),
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		fallback := verifyResponse{
			OK:    false,
			Error: &replay.ReplayError{StepIndex: -1, Reason: "marshal_failed", Message: err.Error()},
		}
		b2, _ := json.Marshal(fallback)
		return string(b2)
	}
	return string(b)
}
