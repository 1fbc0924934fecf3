// pkg/persistence/store.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// --- Errors ---
var (
	// ErrUnsupportedScheme is returned by Open for URIs no backend understands.
	ErrUnsupportedScheme = errors.New("unsupported storage URI scheme")

	// ErrInvalidURI is returned by Open when the URI cannot be parsed at all.
	ErrInvalidURI = errors.New("invalid storage URI")
)

// Backend names
const (
	BackendMongo    = "mongodb"
	BackendPostgres = "postgres"
)

// Store is the storage connection handle held by the lifecycle controller.
// Nothing in the service reads or writes data through it yet; it is opened,
// probed and closed.
type Store interface {
	// Backend names the driver behind the handle ("mongodb", "postgres").
	Backend() string

	// Ping checks that the storage system is reachable.
	Ping(ctx context.Context) error

	// Close releases the connection. Calling it more than once is safe;
	// calls after the first return nil without touching the driver.
	//
	// Close must return once ctx is done, even if the driver has not finished.
	// The shutdown drain relies on this to stay within its deadline.
	Close(ctx context.Context) error
}

// Options is the fixed driver configuration applied before connecting.
type Options struct {
	// StrictQuery enables strict query validation where the driver supports
	// it. For MongoDB this is the Stable API in strict mode; Postgres ignores it.
	StrictQuery bool

	// AppName is reported to the server for connection attribution.
	AppName string
}

// DefaultOptions returns the options the service always connects with.
func DefaultOptions() Options {
	return Options{
		StrictQuery: true,
		AppName:     "onchain-agent-api",
	}
}

// Opener opens and verifies a storage connection. Open is the production
// implementation; tests substitute fakes.
type Opener func(ctx context.Context, uri string, opts Options) (Store, error)

// Open picks a backend from the URI scheme, connects, and pings.
//
//	mongodb://, mongodb+srv://   -> MongoDB
//	postgres://, postgresql://   -> PostgreSQL (pgx pool)
func Open(ctx context.Context, uri string, opts Options) (Store, error) {
	backend, err := BackendFor(uri)
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendMongo:
		return NewMongoStore(ctx, uri, opts)
	default:
		return NewPostgresStore(ctx, uri, opts)
	}
}

// BackendFor returns the backend name for uri without connecting.
func BackendFor(uri string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "mongodb", "mongodb+srv":
		return BackendMongo, nil
	case "postgres", "postgresql":
		return BackendPostgres, nil
	case "":
		return "", fmt.Errorf("%w: no scheme in storage URI", ErrUnsupportedScheme)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}
