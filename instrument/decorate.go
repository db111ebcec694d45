package instrument

import (
	"context"
	"maps"
	"reflect"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/u-ctf/spanwrap"
)

// ErrNotCallable is returned when the decoration target is not a function.
var ErrNotCallable = errors.New("decorated target is not callable")

var contextType = reflect.TypeFor[context.Context]()

// Spec customises the span of a decorated method. It is either a Name or a
// SpanOptions.
type Spec interface {
	apply(*spanConfig)
}

// Name sets the span name. It takes precedence over SpanOptions.Name.
type Name string

func (n Name) apply(c *spanConfig) {
	c.explicitName = string(n)
}

// SpanOptions configures the span of a decorated method. Zero fields are
// ignored; Attributes of several SpanOptions are merged.
type SpanOptions struct {
	// Name of the span. Defaults to "{TypeName}.{methodName}".
	Name string
	// Op categorises the method, recorded as code.op.
	Op string
	// Kind of the span.
	Kind trace.SpanKind
	// Attributes added to the span.
	Attributes map[string]string
	// TrackReceiver records a JSON patch of the receiver when it changed
	// between the call and the end of the invocation. Only used by
	// DecorateMethod.
	TrackReceiver bool
}

func (o SpanOptions) apply(c *spanConfig) {
	if o.Name != "" {
		c.Name = o.Name
	}
	if o.Op != "" {
		c.Op = o.Op
	}
	if o.Kind != trace.SpanKindUnspecified {
		c.Kind = o.Kind
	}
	if o.TrackReceiver {
		c.TrackReceiver = true
	}
	if len(o.Attributes) > 0 {
		if c.Attributes == nil {
			c.Attributes = make(map[string]string, len(o.Attributes))
		}
		maps.Copy(c.Attributes, o.Attributes)
	}
}

type withReceiver struct {
	receiver any
}

func (w withReceiver) apply(c *spanConfig) {
	c.receiver = w.receiver
}

type spanConfig struct {
	SpanOptions

	typeName     string
	methodName   string
	explicitName string
	receiver     any
}

func newSpanConfig(typeName, methodName string, specs []Spec) spanConfig {
	c := spanConfig{
		typeName:   typeName,
		methodName: methodName,
	}
	for _, s := range specs {
		if s != nil {
			s.apply(&c)
		}
	}
	return c
}

func (c spanConfig) spanName() string {
	if c.explicitName != "" {
		return c.explicitName
	}
	if c.Name != "" {
		return c.Name
	}
	return c.typeName + "." + c.methodName
}

func (c spanConfig) startOptions() []trace.SpanStartOption {
	attrs := make([]attribute.KeyValue, 0, len(c.Attributes)+3)
	for _, k := range slices.Sorted(maps.Keys(c.Attributes)) {
		attrs = append(attrs, attribute.String(k, c.Attributes[k]))
	}
	attrs = append(attrs,
		semconv.CodeFunctionKey.String(c.methodName),
		semconv.CodeNamespaceKey.String(c.typeName),
	)
	if c.Op != "" {
		attrs = append(attrs, AttributeCodeOp.String(c.Op))
	}

	opts := []trace.SpanStartOption{trace.WithAttributes(attrs...)}
	if c.Kind != trace.SpanKindUnspecified {
		opts = append(opts, trace.WithSpanKind(c.Kind))
	}
	return opts
}

// Decorate returns a function with the same signature as fn that runs every
// call in its own span. typeName and methodName name the span and fill the
// code.namespace and code.function attributes.
//
// When the first parameter of fn is a context.Context, the span is started
// from it and the callee receives the span's context, so decorated functions
// called from there produce child spans.
//
// The span ends when the result reaches its terminal event: on return for
// plain values, when a future settles, when a sequence is exhausted or fails.
// A panic or a non-nil trailing error fails the span.
func Decorate[F any](inst Instrumenter, typeName, methodName string, fn F, specs ...Spec) (F, error) {
	cfg := newSpanConfig(typeName, methodName, specs)

	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func || fv.IsNil() {
		var zero F
		err := errors.Wrapf(ErrNotCallable, "%s.%s is %T", typeName, methodName, fn)
		inst.NewLogger(context.Background()).Error(err, "cannot decorate", "span", cfg.spanName())
		return zero, err
	}

	wrapped := reflect.MakeFunc(fv.Type(), func(args []reflect.Value) []reflect.Value {
		return invoke(inst, cfg, fv, args)
	})
	return wrapped.Interface().(F), nil
}

// DecorateMethod looks up the method called methodName on receiver and
// decorates it. The containing type name is taken from the receiver.
func DecorateMethod[F any](inst Instrumenter, receiver any, methodName string, specs ...Spec) (F, error) {
	var zero F

	rv := reflect.ValueOf(receiver)
	if !rv.IsValid() {
		err := errors.Wrapf(ErrNotCallable, "method %s on a nil receiver", methodName)
		inst.NewLogger(context.Background()).Error(err, "cannot decorate", "method", methodName)
		return zero, err
	}

	typeName := typeNameOf(rv.Type())
	method := rv.MethodByName(methodName)
	if !method.IsValid() {
		err := errors.Wrapf(ErrNotCallable, "%s has no method %s", typeName, methodName)
		inst.NewLogger(context.Background()).Error(err, "cannot decorate", "type", typeName, "method", methodName)
		return zero, err
	}

	target := reflect.TypeFor[F]()
	if !method.Type().ConvertibleTo(target) {
		err := errors.Wrapf(ErrNotCallable, "%s.%s has type %s, not %s", typeName, methodName, method.Type(), target)
		inst.NewLogger(context.Background()).Error(err, "cannot decorate", "type", typeName, "method", methodName)
		return zero, err
	}

	fn := method.Convert(target).Interface().(F)
	return Decorate(inst, typeName, methodName, fn, append(slices.Clip(specs), withReceiver{receiver: receiver})...)
}

func typeNameOf(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

func invoke(inst Instrumenter, cfg spanConfig, fn reflect.Value, in []reflect.Value) []reflect.Value {
	fnType := fn.Type()
	args := slices.Clone(in)

	ctx := context.Background()
	ctxArg := fnType.NumIn() > 0 && fnType.In(0) == contextType
	if ctxArg && !args[0].IsNil() {
		ctx = args[0].Interface().(context.Context)
	}

	spanName := cfg.spanName()
	ctx, span := inst.StartSpan(ctx, spanName, cfg.startOptions()...)
	if ctxArg {
		args[0] = reflect.ValueOf(&ctx).Elem()
	}

	logger := inst.NewLogger(ctx).WithValues("span", spanName, "invocation", uuid.NewString())

	var before []byte
	if cfg.TrackReceiver && cfg.receiver != nil {
		before = snapshot(cfg.receiver)
	}

	startedAt := time.Now()
	done := func(err error) {
		if before != nil {
			recordReceiverPatch(span, before, cfg.receiver)
		}
		endSpan(span, err)

		duration := time.Since(startedAt)
		if err != nil {
			logger.V(1).Info("Invocation failed", "error", err.Error(), "duration", duration)
			return
		}
		logger.V(1).Info("Invocation completed", "duration", duration)
	}

	return spanwrap.Wrap(spanwrap.Invocation{
		Callable: fn,
		Args:     args,
		Unadapted: func(shape spanwrap.Shape, declared reflect.Type) {
			logger.Info("Result type cannot carry completion, ending span on return",
				"shape", shape.String(), "type", declared.String())
		},
	}, done)
}
