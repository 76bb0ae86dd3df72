// internal/bus/nats.go
package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// JSONPublisher is the publishing half of Client.
type JSONPublisher interface {
	PublishJSON(subject string, v any) error
}

type Client struct{ nc *nats.Conn }

func Connect(url, name string) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Client{nc: nc}, nil
}

func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}

func (c *Client) Conn() *nats.Conn { return c.nc }

func (c *Client) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.nc.Publish(subject, b)
}

// SubscribeJSON delivers each message to handler with a context bounded by
// timeout. A non-empty queue makes it a queue subscription so that several
// workers share the load.
func (c *Client) SubscribeJSON(subject, queue string, timeout time.Duration, handler func(ctx context.Context, data []byte)) (*nats.Subscription, error) {
	cb := func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		handler(ctx, msg.Data)
	}
	if queue != "" {
		return c.nc.QueueSubscribe(subject, queue, cb)
	}
	return c.nc.Subscribe(subject, cb)
}
