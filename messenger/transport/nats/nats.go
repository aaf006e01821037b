// Package nats carries envelopes over a NATS subject pair, for a core that runs out of process on a message bus.
// Messages for the core travel on "<prefix>.core" and messages for the IDE host on "<prefix>.host".
package nats

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	comms "github.com/nats-io/nats.go"
	"github.com/swdunlop/html-go/hog"
)

// Connect creates a NATS connection to the given URL, logging connection changes to the context logger.
func Connect(ctx context.Context, url, name string) (*comms.Conn, error) {
	log := hog.From(ctx)
	nc, err := comms.Connect(url,
		comms.Name(name),
		comms.Timeout(10*time.Second),
		comms.ReconnectWait(2*time.Second),
		comms.MaxReconnects(60),
		comms.DisconnectErrHandler(func(_ *comms.Conn, err error) {
			log.Warn().Err(err).Msg(`NATS disconnected`)
		}),
		comms.ReconnectHandler(func(nc *comms.Conn) {
			log.Info().Str(`url`, nc.ConnectedUrl()).Msg(`NATS reconnected`)
		}),
		comms.ClosedHandler(func(nc *comms.Conn) {
			log.Debug().Msg(`NATS connection closed`)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf(`%w while connecting to NATS at %v`, err, url)
	}
	log.Info().Str(`url`, nc.ConnectedUrl()).Msg(`connected to NATS`)
	return nc, nil
}

// Host returns the IDE host's side of the subject pair.
func Host(nc *comms.Conn, prefix string) (*Conn, error) {
	return newConn(nc, prefix+`.host`, prefix+`.core`)
}

// Core returns the core's side of the subject pair.
func Core(nc *comms.Conn, prefix string) (*Conn, error) {
	return newConn(nc, prefix+`.core`, prefix+`.host`)
}

// Conn is a transport over a NATS subject pair.  Closing it unsubscribes but leaves the NATS connection open.
type Conn struct {
	nc   *comms.Conn
	sub  *comms.Subscription
	msgs chan *comms.Msg
	out  string
	done chan struct{}
	once sync.Once
}

func newConn(nc *comms.Conn, in, out string) (*Conn, error) {
	conn := &Conn{
		nc:   nc,
		msgs: make(chan *comms.Msg, 256),
		out:  out,
		done: make(chan struct{}),
	}
	var err error
	conn.sub, err = nc.ChanSubscribe(in, conn.msgs)
	if err != nil {
		return nil, fmt.Errorf(`%w while subscribing to %v`, err, in)
	}
	// The subscription must be registered with the server before the far side publishes.
	err = nc.Flush()
	if err != nil {
		_ = conn.sub.Unsubscribe()
		return nil, err
	}
	return conn, nil
}

// Read returns the next message published to this side, or io.EOF once the transport or the NATS connection is
// closed.
func (conn *Conn) Read(ctx context.Context) ([]byte, error) {
	for {
		select {
		case msg := <-conn.msgs:
			return msg.Data, nil
		case <-conn.done:
			return nil, io.EOF
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			if conn.nc.IsClosed() {
				return nil, io.EOF
			}
		}
	}
}

// Write publishes a message to the other side.
func (conn *Conn) Write(ctx context.Context, data []byte) error {
	select {
	case <-conn.done:
		return io.ErrClosedPipe
	default:
	}
	return conn.nc.Publish(conn.out, data)
}

// Close unsubscribes from this side's subject.
func (conn *Conn) Close() error {
	var err error
	conn.once.Do(func() {
		close(conn.done)
		err = conn.sub.Unsubscribe()
	})
	return err
}
