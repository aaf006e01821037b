package peer

import (
	"errors"

	"github.com/swdunlop/messenger-go/messenger/protocol"
)

var (
	// ErrClosed is returned to every pending request when the transport it was sent on stops.
	ErrClosed = &protocol.Fail{Code: protocol.CodeUnavailable, Message: `transport closed before a response arrived`}

	// ErrNotConnected is returned by Request and Send while no transport is being served.
	ErrNotConnected = &protocol.Fail{Code: protocol.CodeUnavailable, Message: `endpoint is not connected`}

	// ErrBusy is returned by Serve when the peer is already serving another transport.
	ErrBusy = &protocol.Fail{Code: protocol.CodeConflict, Message: `endpoint is already connected`}

	// ErrRegistrationClosed is returned by On once the peer has started serving.
	ErrRegistrationClosed = errors.New(`handlers must be registered before the peer is served`)

	// ErrResponded is returned by a Scope when a handler responds twice.
	ErrResponded = errors.New(`response already sent`)
)
