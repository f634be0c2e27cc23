// Package humastar bridges Huma streaming responses and the Datastar SSE
// protocol.
//
// Handlers return [Stream] (or build a [huma.StreamResponse] and call
// [NewSSE] themselves) and read the page's signals with [Decode]:
//
//	func (h *Handler) Select(ctx context.Context, in *Input) (*huma.StreamResponse, error) {
//	    sig, err := humastar.Decode[selectSignals](in.RawBody)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return humastar.Stream(func(sse humastar.SSE) {
//	        sse.Signals(map[string]any{"selected": sig.Location})
//	    }), nil
//	}
package humastar

import (
	"bytes"
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"
)

// SSE wraps a Datastar SSE generator with signal helpers.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// Stream returns a Huma StreamResponse that calls fn with a ready SSE.
func Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			fn(NewSSE(humaCtx))
		},
	}
}

// NewSSE starts a Datastar event stream on a Huma streaming context. Only
// the humago adapter is supported.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Error patches the "error" signal.
func (s SSE) Error(msg string) error {
	return s.MarshalAndPatchSignals(map[string]any{"error": msg})
}

// Notice patches the "notice" signal; an empty msg clears it.
func (s SSE) Notice(msg string) error {
	return s.MarshalAndPatchSignals(map[string]any{"notice": msg})
}

// Signals patches arbitrary signals.
func (s SSE) Signals(signals any) error {
	return s.MarshalAndPatchSignals(signals)
}

// Decode reads the signals Datastar posts as a flat JSON object into T.
// Unknown signals are ignored; an empty body yields the zero T. Malformed
// JSON is a 400.
func Decode[T any](body []byte) (T, error) {
	var v T
	if len(bytes.TrimSpace(body)) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, huma.Error400BadRequest("invalid signals: " + err.Error())
	}
	return v, nil
}
