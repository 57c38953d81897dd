// File: internal/copilot/events.go
package copilot

import "github.com/guidelight-ai/guidelight/api/schemas"

// EmitFunc receives each event of a turn's stream, in order, synchronous
// with the orchestrator's own processing. Implementations must not
// block indefinitely; the transport buffers or drops on its side.
type EmitFunc func(schemas.Event)

// emitSafe guards against a nil sink so components can be exercised in
// isolation.
func emitSafe(emit EmitFunc, ev schemas.Event) {
	if emit != nil {
		emit(ev)
	}
}
