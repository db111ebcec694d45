package instrument

import (
	"encoding/json"

	"github.com/wI2L/jsondiff"
	"go.opentelemetry.io/otel/trace"
)

// snapshot returns the JSON form of receiver, or nil when it cannot be
// marshalled.
func snapshot(receiver any) []byte {
	data, err := json.Marshal(receiver)
	if err != nil {
		return nil
	}
	return data
}

// recordReceiverPatch adds a receiver.mutated event to span when receiver no
// longer matches the before snapshot.
func recordReceiverPatch(span trace.Span, before []byte, receiver any) {
	after := snapshot(receiver)
	if after == nil {
		return
	}

	patch, err := jsondiff.CompareJSON(before, after)
	if err != nil || len(patch) == 0 {
		return
	}

	encoded, err := json.Marshal(patch)
	if err != nil {
		return
	}

	span.AddEvent(EventReceiverMutated, trace.WithAttributes(
		AttributeReceiverPatch.String(string(encoded)),
		AttributeReceiverOperations.Int(len(patch)),
	))
}
