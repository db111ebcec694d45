package main

import (
	"context"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/u-ctf/spanwrap/async"
	"github.com/u-ctf/spanwrap/instrument"
)

var errUnknownItem = errors.New("unknown item")

// catalog is a toy store whose methods return one result shape each.
type catalog struct {
	mu    sync.Mutex
	Items []string `json:"items"`
	Reads int      `json:"reads"`
}

func newCatalog(items ...string) *catalog {
	return &catalog{Items: items}
}

// Lookup returns an immediate value.
func (c *catalog) Lookup(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Reads++
	if !slices.Contains(c.Items, name) {
		return "", errors.Wrapf(errUnknownItem, "lookup %q", name)
	}
	return name, nil
}

// Fetch settles later.
func (c *catalog) Fetch(ctx context.Context, name string) *async.Future[string] {
	return async.Go(func() (string, error) {
		select {
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return c.Lookup(ctx, name)
	})
}

// All yields every item, synchronously.
func (c *catalog) All(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		c.mu.Lock()
		items := slices.Clone(c.Items)
		c.mu.Unlock()

		for _, item := range items {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Watch streams every item through deferred steps.
func (c *catalog) Watch(ctx context.Context) *async.Stream[string] {
	ch := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(ch)
		c.mu.Lock()
		items := slices.Clone(c.Items)
		c.mu.Unlock()

		for _, item := range items {
			select {
			case ch <- item:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()
	return async.FromChannel(ch, errc)
}

type tracedCatalog struct {
	lookup func(context.Context, string) (string, error)
	fetch  func(context.Context, string) *async.Future[string]
	all    func(context.Context) iter.Seq2[string, error]
	watch  func(context.Context) *async.Stream[string]
}

func newTracedCatalog(inst instrument.Instrumenter, c *catalog) (*tracedCatalog, error) {
	var (
		t   tracedCatalog
		err error
	)

	t.lookup, err = instrument.DecorateMethod[func(context.Context, string) (string, error)](inst, c, "Lookup",
		instrument.SpanOptions{Op: "db.query", TrackReceiver: true})
	if err != nil {
		return nil, err
	}

	t.fetch, err = instrument.DecorateMethod[func(context.Context, string) *async.Future[string]](inst, c, "Fetch",
		instrument.SpanOptions{Op: "http.client", Attributes: map[string]string{"catalog.source": "remote"}})
	if err != nil {
		return nil, err
	}

	t.all, err = instrument.DecorateMethod[func(context.Context) iter.Seq2[string, error]](inst, c, "All",
		instrument.Name("catalog.list"))
	if err != nil {
		return nil, err
	}

	t.watch, err = instrument.DecorateMethod[func(context.Context) *async.Stream[string]](inst, c, "Watch")
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// exercise drives one call of every shape to its terminal event.
func (t *tracedCatalog) exercise(ctx context.Context, logger logr.Logger) error {
	if _, err := t.lookup(ctx, "alpha"); err != nil {
		return err
	}
	if _, err := t.lookup(ctx, "omega"); err != nil {
		logger.Info("Lookup failed as expected", "error", err.Error())
	}

	v, err := t.fetch(ctx, "beta").Await(ctx)
	if err != nil {
		return err
	}
	logger.Info("Fetched item", "item", v)

	for item, err := range t.all(ctx) {
		if err != nil {
			return err
		}
		logger.Info("Listed item", "item", item)
	}

	for item, err := range t.watch(ctx).All(ctx) {
		if err != nil {
			return err
		}
		logger.Info("Watched item", "item", item)
	}
	return nil
}
