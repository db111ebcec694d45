package instrument

import "go.opentelemetry.io/otel/attribute"

const (
	// AttributeCodeOp carries the caller-supplied category of a decorated
	// method. It is only set when SpanOptions.Op is not empty.
	AttributeCodeOp attribute.Key = "code.op"

	// EventReceiverMutated is added to a span when SpanOptions.TrackReceiver is
	// set and the receiver changed during the invocation.
	EventReceiverMutated = "receiver.mutated"

	AttributeReceiverPatch      attribute.Key = "receiver.patch"
	AttributeReceiverOperations attribute.Key = "receiver.operations"
)
