package core

import "github.com/google/uuid"

// clientBuffer is how many events may queue for a client before new ones are dropped.
const clientBuffer = 64

// Client is a live connection as seen by the core layer.
type Client struct {
	ID     string
	Events chan *Event

	// guarded by the hub lock
	rooms  map[string]struct{}
	closed bool
}

// NewClient constructs a client with a fresh id and a buffered event channel.
func NewClient() *Client {
	return &Client{
		ID:     uuid.NewString(),
		Events: make(chan *Event, clientBuffer),
		rooms:  make(map[string]struct{}),
	}
}

func (c *Client) close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.Events)
}
