package dispatch

import (
	"context"
	"sync"

	"github.com/roach88/namedb/internal/store"
)

// Created is the result of a Client.Create operation.
type Created struct {
	Record store.Record
	// OK is false when the name was blank and nothing was written.
	OK bool
}

// Client issues record operations for one store handle through a Dispatcher.
// Operations issued from one goroutine apply in issue order.
type Client struct {
	d *Dispatcher

	mu sync.Mutex
	h  *store.Handle
}

// NewClient returns a Client that runs operations on h via d.
func NewClient(d *Dispatcher, h *store.Handle) *Client {
	return &Client{d: d, h: h}
}

// Handle returns the handle the client currently operates on.
func (c *Client) Handle() *store.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h
}

func (c *Client) rebind(h *store.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.h = h
}

// Create queues a create; the future resolves to Created.
func (c *Client) Create(name string) (*Future, error) {
	return c.d.Submit("create", func(ctx context.Context) (any, error) {
		rec, ok, err := c.Handle().Create(ctx, name)
		if err != nil {
			return nil, err
		}
		return Created{Record: rec, OK: ok}, nil
	})
}

// List queues a list; the future resolves to []store.Record.
func (c *Client) List() (*Future, error) {
	return c.d.Submit("list", func(ctx context.Context) (any, error) {
		return c.Handle().List(ctx)
	})
}

// Update queues an update; the future resolves to bool.
func (c *Client) Update(id int64, newName string) (*Future, error) {
	return c.d.Submit("update", func(ctx context.Context) (any, error) {
		return c.Handle().Update(ctx, id, newName)
	})
}

// Delete queues a delete; the future resolves to bool.
func (c *Client) Delete(id int64) (*Future, error) {
	return c.d.Submit("delete", func(ctx context.Context) (any, error) {
		return c.Handle().Delete(ctx, id)
	})
}

// Export queues an export to dst; the future resolves to nil.
func (c *Client) Export(dst store.Destination) (*Future, error) {
	return c.d.Submit("export", func(ctx context.Context) (any, error) {
		return nil, c.Handle().ExportTo(ctx, dst)
	})
}

// Import queues an import from src; the future resolves to *store.Handle.
// Operations queued after Import run against the imported file.
func (c *Client) Import(src store.Source) (*Future, error) {
	return c.d.Submit("import", func(ctx context.Context) (any, error) {
		h, err := c.Handle().ImportFrom(ctx, src)
		if err != nil {
			return nil, err
		}
		c.rebind(h)
		return h, nil
	})
}

// Close queues closing the handle; the future resolves to nil.
func (c *Client) Close() (*Future, error) {
	return c.d.Submit("close", func(ctx context.Context) (any, error) {
		return nil, c.Handle().Close()
	})
}
