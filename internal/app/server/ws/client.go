package ws

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// RuntimeClient ties one websocket to one user. Sends go through a
// buffered channel drained by a single write loop so concurrent
// dispatchers never interleave frames on the wire.
type RuntimeClient struct {
	ctx    context.Context
	cancel context.CancelFunc
	ws     *WebSocket
	id     string
	userID int64
	out    chan []byte
	once   sync.Once
}

func NewClient(parent context.Context, ws *WebSocket, userID int64) *RuntimeClient {
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:    ctx,
		cancel: cancel,
		ws:     ws,
		id:     uuid.NewString(),
		userID: userID,
		out:    make(chan []byte, 256),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ID() string    { return c.id }
func (c *RuntimeClient) UserID() int64 { return c.userID }

func (c *RuntimeClient) Send(ctx context.Context, data []byte) error {
	select {
	case c.out <- data:
		return nil
	case <-c.ctx.Done():
		return errors.New("client closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the client context and tears down the socket. The out
// channel is never closed: dispatchers may still be inside Send when a
// disconnect lands, and a send on a closed channel would take the whole
// process down. Cancellation alone unblocks both Send and writeLoop.
func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeClient) writeLoop() {
	defer c.Close()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.out:
			_ = c.ws.WriteMessage(data)
		}
	}
}
