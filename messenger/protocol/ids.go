package protocol

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// An IDGenerator returns a new correlation id for every call.  Ids must not repeat while a request with the same id is
// still outstanding on the channel.
type IDGenerator func() string

// UUIDs generates random version 4 UUIDs, which is what the webview generates for its own requests.
func UUIDs() IDGenerator {
	return func() string { return uuid.NewString() }
}

// ULIDs generates monotonic ULIDs, which sort by creation time and are easier to follow in logs.
func ULIDs() IDGenerator {
	var mu sync.Mutex
	entropy := ulid.Monotonic(rand.Reader, 0)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
	}
}

// IDsNamed returns the generator for a configured id format.
func IDsNamed(name string) (IDGenerator, error) {
	switch name {
	case ``, `uuid`:
		return UUIDs(), nil
	case `ulid`:
		return ULIDs(), nil
	default:
		return nil, fmt.Errorf(`unsupported id format %q`, name)
	}
}
