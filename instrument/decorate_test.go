package instrument

import (
	"context"
	"errors"
	"iter"
	"slices"
	"strings"
	"testing"

	"github.com/go-logr/logr/testr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/u-ctf/spanwrap/async"
)

func newRecordingInstrumenter(t *testing.T) (Instrumenter, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	inst := NewInstrumenter().
		WithTracer(NewOtelTracer(tp.Tracer("spanwrap-test"))).
		WithLoggerFunc(NewLoggerFunc(testr.New(t))).
		Build()
	return inst, recorder
}

func attributeValue(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func exceptionEvents(span sdktrace.ReadOnlySpan) int {
	n := 0
	for _, e := range span.Events() {
		if e.Name == semconv.ExceptionEventName {
			n++
		}
	}
	return n
}

type inventory struct {
	Items []string `json:"items"`
}

func (i *inventory) Count(ctx context.Context) int {
	return len(i.Items)
}

func (i *inventory) Add(ctx context.Context, item string) error {
	if item == "" {
		return errors.New("empty item")
	}
	i.Items = append(i.Items, item)
	return nil
}

func (i *inventory) Get(ctx context.Context, idx int) (string, error) {
	if idx >= len(i.Items) {
		return "", errors.New("out of range")
	}
	return i.Items[idx], nil
}

func TestDecorateMethod_SpanName(t *testing.T) {
	tests := []struct {
		name  string
		specs []Spec
		want  string
	}{
		{name: "default", want: "inventory.Count"},
		{name: "options name", specs: []Spec{SpanOptions{Name: "inventory.size"}}, want: "inventory.size"},
		{name: "explicit name", specs: []Spec{Name("count-items")}, want: "count-items"},
		{name: "explicit name wins", specs: []Spec{SpanOptions{Name: "inventory.size"}, Name("count-items")}, want: "count-items"},
		{name: "explicit name wins in any order", specs: []Spec{Name("count-items"), SpanOptions{Name: "inventory.size"}}, want: "count-items"},
		{name: "options without name", specs: []Spec{SpanOptions{Op: "db"}}, want: "inventory.Count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, recorder := newRecordingInstrumenter(t)
			count, err := DecorateMethod[func(context.Context) int](inst, &inventory{}, "Count", tt.specs...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			count(context.Background())

			spans := recorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			if spans[0].Name() != tt.want {
				t.Errorf("expected span name %q, got %q", tt.want, spans[0].Name())
			}
		})
	}
}

func TestDecorateMethod_Attributes(t *testing.T) {
	inst, recorder := newRecordingInstrumenter(t)
	count, err := DecorateMethod[func(context.Context) int](inst, &inventory{}, "Count", SpanOptions{
		Op:         "db.query",
		Kind:       trace.SpanKindClient,
		Attributes: map[string]string{"db.system": "memory"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count(context.Background())
	span := recorder.Ended()[0]

	want := map[attribute.Key]string{
		semconv.CodeFunctionKey:  "Count",
		semconv.CodeNamespaceKey: "inventory",
		AttributeCodeOp:          "db.query",
		"db.system":              "memory",
	}
	for key, value := range want {
		got, ok := attributeValue(span, key)
		if !ok {
			t.Errorf("expected attribute %s to be set", key)
			continue
		}
		if got.AsString() != value {
			t.Errorf("expected %s=%q, got %q", key, value, got.AsString())
		}
	}

	if span.SpanKind() != trace.SpanKindClient {
		t.Errorf("expected span kind client, got %s", span.SpanKind())
	}
}

func TestDecorateMethod_NoOpAttributeByDefault(t *testing.T) {
	inst, recorder := newRecordingInstrumenter(t)
	count, _ := DecorateMethod[func(context.Context) int](inst, &inventory{}, "Count")

	count(context.Background())

	if _, ok := attributeValue(recorder.Ended()[0], AttributeCodeOp); ok {
		t.Errorf("expected no %s attribute without an op", AttributeCodeOp)
	}
}

func TestDecorate_Success(t *testing.T) {
	inst, recorder := newRecordingInstrumenter(t)
	get, _ := DecorateMethod[func(context.Context, int) (string, error)](inst, &inventory{Items: []string{"a"}}, "Get")

	v, err := get(context.Background(), 0)
	if err != nil || v != "a" {
		t.Fatalf("expected (a, nil), got (%q, %v)", v, err)
	}

	span := recorder.Ended()[0]
	if span.Status().Code != codes.Unset {
		t.Errorf("expected status to stay unset, got %s", span.Status().Code)
	}
	if exceptionEvents(span) != 0 {
		t.Errorf("expected no exception events")
	}
}

func TestDecorate_ReturnedError(t *testing.T) {
	inst, recorder := newRecordingInstrumenter(t)
	get, _ := DecorateMethod[func(context.Context, int) (string, error)](inst, &inventory{}, "Get")

	if _, err := get(context.Background(), 3); err == nil {
		t.Fatalf("expected the error to be returned to the caller")
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error || spans[0].Status().Description != "out of range" {
		t.Errorf("expected error status, got %+v", spans[0].Status())
	}
	if exceptionEvents(spans[0]) != 1 {
		t.Errorf("expected exactly one exception event, got %d", exceptionEvents(spans[0]))
	}
}

func TestDecorate_Panic(t *testing.T) {
	inst, recorder := newRecordingInstrumenter(t)
	explode, _ := Decorate(inst, "worker", "explode", func() { panic("boom") })

	func() {
		defer func() {
			if r := recover(); r != "boom" {
				t.Errorf("expected panic to propagate, got %v", r)
			}
		}()
		explode()
	}()

	span := recorder.Ended()[0]
	if span.Status().Code != codes.Error {
		t.Errorf("expected error status, got %s", span.Status().Code)
	}
	if exceptionEvents(span) != 1 {
		t.Errorf("expected exactly one exception event, got %d", exceptionEvents(span))
	}
}

func TestDecorate_Variadic(t *testing.T) {
	inst, recorder := newRecordingInstrumenter(t)
	join, _ := Decorate(inst, "strings", "Join", func(sep string, parts ...string) string {
		return strings.Join(parts, sep)
	})

	if got := join("/", "a", "b"); got != "a/b" {
		t.Errorf("expected a/b, got %q", got)
	}
	if len(recorder.Ended()) != 1 {
		t.Errorf("expected 1 span")
	}
}

func TestDecorate_Future(t *testing.T) {
	inst, recorder := newRecordingInstrumenter(t)

	f, resolve, _ := async.NewPromise[int]()
	fetch, _ := Decorate(inst, "client", "Fetch", func(ctx context.Context) *async.Future[int] { return f })

	traced := fetch(context.Background())
	if len(recorder.Ended()) != 0 {
		t.Fatalf("expected the span to stay open until the future settles")
	}
	if len(recorder.Started()) != 1 {
		t.Fatalf("expected the span to be started on call")
	}

	resolve(1)
	if _, err := traced.Await(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(recorder.Ended()) != 1 {
		t.Errorf("expected the span to end once the future settled")
	}
}

func TestDecorate_RejectedFuture(t *testing.T) {
	inst, recorder := newRecordingInstrumenter(t)
	fetch, _ := Decorate(inst, "client", "Fetch", func() *async.Future[int] {
		return async.Go(func() (int, error) { return 0, errors.New("unreachable") })
	})

	if _, err := fetch().Await(context.Background()); err == nil {
		t.Fatalf("expected rejection")
	}

	span := recorder.Ended()[0]
	if span.Status().Code != codes.Error || exceptionEvents(span) != 1 {
		t.Errorf("expected a failed span with one exception, got %+v", span.Status())
	}
}

func TestDecorate_Sequence(t *testing.T) {
	inst, recorder := newRecordingInstrumenter(t)
	list, _ := Decorate(inst, "store", "List", func(ctx context.Context) iter.Seq[int] {
		return slices.Values([]int{1, 2, 3})
	})

	seq := list(context.Background())
	if len(recorder.Ended()) != 0 {
		t.Fatalf("expected the span to stay open until the sequence is drained")
	}

	if got := slices.Collect(seq); len(got) != 3 {
		t.Errorf("expected 3 values, got %v", got)
	}
	if len(recorder.Ended()) != 1 {
		t.Errorf("expected the span to end after exhaustion")
	}
}

func TestDecorate_SequenceEndsAfterLastValue(t *testing.T) {
	inst, recorder := newRecordingInstrumenter(t)
	list, _ := Decorate(inst, "store", "List", func() iter.Seq[int] {
		return slices.Values([]int{1, 2, 3})
	})

	for v := range list() {
		if v == 3 && len(recorder.Ended()) != 0 {
			t.Errorf("expected the span to stay open while the last value is consumed")
		}
	}

	if len(recorder.Ended()) != 1 {
		t.Errorf("expected the span to end once the loop finishes")
	}
}

func TestDecorate_SequenceBreak(t *testing.T) {
	inst, recorder := newRecordingInstrumenter(t)
	list, _ := Decorate(inst, "store", "List", func() iter.Seq[int] {
		return slices.Values([]int{1, 2, 3})
	})

	for range list() {
		break
	}

	if len(recorder.Ended()) != 0 {
		t.Errorf("expected an abandoned sequence to leave its span open")
	}
}

func TestDecorate_SequenceError(t *testing.T) {
	inst, recorder := newRecordingInstrumenter(t)
	list, _ := Decorate(inst, "store", "Scan", func() iter.Seq2[int, error] {
		return func(yield func(int, error) bool) {
			if !yield(1, nil) {
				return
			}
			yield(0, errors.New("corrupt row"))
		}
	})

	var lastErr error
	for _, err := range list() {
		lastErr = err
	}

	if lastErr == nil {
		t.Fatalf("expected the failing pair to reach the consumer")
	}
	span := recorder.Ended()[0]
	if span.Status().Code != codes.Error || span.Status().Description != "corrupt row" {
		t.Errorf("expected error status, got %+v", span.Status())
	}
}

func TestDecorate_AsyncSequence(t *testing.T) {
	inst, recorder := newRecordingInstrumenter(t)
	watch, _ := Decorate(inst, "store", "Watch", func() *async.Stream[string] {
		return async.StreamOf("a", "b")
	})

	s := watch()
	n := 0
	for _, err := range s.All(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(recorder.Ended()) != 0 {
			t.Errorf("expected the span to stay open while steps are fulfilled")
		}
		n++
	}

	if n != 2 {
		t.Errorf("expected 2 elements, got %d", n)
	}
	if len(recorder.Ended()) != 1 {
		t.Errorf("expected the span to end once the stream is exhausted")
	}
}

type watchFeed struct {
	*async.Stream[string]
}

func TestDecorate_EmbeddedStreamEndsOnReturn(t *testing.T) {
	inst, recorder := newRecordingInstrumenter(t)
	watch, _ := Decorate(inst, "store", "Watch", func() watchFeed {
		return watchFeed{async.StreamOf("a", "b")}
	})

	feed := watch()
	if len(recorder.Ended()) != 1 {
		t.Fatalf("expected the span to end on return")
	}

	n := 0
	for _, err := range feed.All(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		n++
	}
	if n != 2 {
		t.Errorf("expected 2 elements, got %d", n)
	}
	if len(recorder.Ended()) != 1 {
		t.Errorf("expected draining not to end another span")
	}
}

func TestDecorate_Nesting(t *testing.T) {
	inst, recorder := newRecordingInstrumenter(t)

	inner, _ := Decorate(inst, "svc", "inner", func(ctx context.Context) error { return nil })
	outer, _ := Decorate(inst, "svc", "outer", func(ctx context.Context) error {
		return inner(ctx)
	})

	if err := outer(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "svc.inner" || spans[1].Name() != "svc.outer" {
		t.Errorf("expected inner to end before outer, got %s then %s", spans[0].Name(), spans[1].Name())
	}
	if spans[0].Parent().SpanID() != spans[1].SpanContext().SpanID() {
		t.Errorf("expected inner span to be a child of outer")
	}
	if spans[1].Parent().IsValid() {
		t.Errorf("expected outer span to be a root span")
	}
}

type account struct {
	balance int
	traced  struct {
		balance func(ctx context.Context) int
	}
}

func (a *account) Balance(ctx context.Context) int {
	return a.balance
}

func (a *account) Report(ctx context.Context) string {
	if a.traced.balance(ctx) < 0 {
		return "overdrawn"
	}
	return "ok"
}

func TestDecorateMethod_Nesting(t *testing.T) {
	inst, recorder := newRecordingInstrumenter(t)
	acct := &account{balance: 10}

	balance, err := DecorateMethod[func(context.Context) int](inst, acct, "Balance")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	acct.traced.balance = balance

	report, err := DecorateMethod[func(context.Context) string](inst, acct, "Report")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := report(context.Background()); got != "ok" {
		t.Errorf("expected ok, got %s", got)
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "account.Balance" || spans[1].Name() != "account.Report" {
		t.Errorf("expected Balance to end before Report, got %s then %s", spans[0].Name(), spans[1].Name())
	}
	if spans[0].Parent().SpanID() != spans[1].SpanContext().SpanID() {
		t.Errorf("expected Balance to be a child of Report")
	}
}

func TestDecorate_WithoutContextIsRoot(t *testing.T) {
	inst, recorder := newRecordingInstrumenter(t)

	leaf, _ := Decorate(inst, "svc", "leaf", func() int { return 1 })
	outer, _ := Decorate(inst, "svc", "outer", func(ctx context.Context) int { return leaf() })

	outer(context.Background())

	spans := recorder.Ended()
	if spans[0].Name() != "svc.leaf" || spans[0].Parent().IsValid() {
		t.Errorf("expected a function without a context to start a root span")
	}
}

func TestDecorate_NilContext(t *testing.T) {
	inst, recorder := newRecordingInstrumenter(t)

	var received context.Context
	fn, _ := Decorate(inst, "svc", "run", func(ctx context.Context) { received = ctx })

	//nolint:staticcheck
	fn(nil)

	if received == nil {
		t.Errorf("expected the callee to receive the span context")
	}
	if len(recorder.Ended()) != 1 {
		t.Errorf("expected 1 span")
	}
}

func TestDecorate_NotCallable(t *testing.T) {
	inst, _ := newRecordingInstrumenter(t)

	if _, err := Decorate[any](inst, "svc", "value", 42); !errors.Is(err, ErrNotCallable) {
		t.Errorf("expected ErrNotCallable for a value, got %v", err)
	}
	if _, err := Decorate(inst, "svc", "nil", (func())(nil)); !errors.Is(err, ErrNotCallable) {
		t.Errorf("expected ErrNotCallable for a nil func, got %v", err)
	}
	if _, err := DecorateMethod[func()](inst, &inventory{}, "Missing"); !errors.Is(err, ErrNotCallable) {
		t.Errorf("expected ErrNotCallable for a missing method, got %v", err)
	}
	if _, err := DecorateMethod[func()](inst, &inventory{}, "Count"); !errors.Is(err, ErrNotCallable) {
		t.Errorf("expected ErrNotCallable for a mismatched signature, got %v", err)
	}
	if _, err := DecorateMethod[func()](inst, nil, "Count"); !errors.Is(err, ErrNotCallable) {
		t.Errorf("expected ErrNotCallable for a nil receiver, got %v", err)
	}
}
