package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendFor(t *testing.T) {
	tests := []struct {
		uri     string
		backend string
		wantErr error
	}{
		{"mongodb://localhost:27017/agent", BackendMongo, nil},
		{"mongodb+srv://cluster0.example.net/agent", BackendMongo, nil},
		{"MONGODB://localhost", BackendMongo, nil},
		{"postgres://user:pw@localhost:5432/agent", BackendPostgres, nil},
		{"postgresql://localhost/agent", BackendPostgres, nil},
		{"  mongodb://padded:27017  ", BackendMongo, nil},
		{"redis://localhost:6379", "", ErrUnsupportedScheme},
		{"localhost:27017", "", ErrUnsupportedScheme},
		{"://broken", "", ErrInvalidURI},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			backend, err := BackendFor(tt.uri)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.backend, backend)
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.True(t, opts.StrictQuery)
	assert.NotEmpty(t, opts.AppName)
}

func TestOpen_UnsupportedScheme(t *testing.T) {
	store, err := Open(context.Background(), "redis://localhost:6379", DefaultOptions())
	assert.Nil(t, store)
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestOpen_MongoUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Port 1 refuses connections; server selection gives up quickly.
	uri := "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200&connectTimeoutMS=200"
	store, err := Open(ctx, uri, DefaultOptions())
	assert.Nil(t, store)
	assert.Error(t, err)
}

func TestOpen_PostgresBadDSN(t *testing.T) {
	store, err := Open(context.Background(), "postgres://user@localhost:notaport/agent", DefaultOptions())
	assert.Nil(t, store)
	assert.Error(t, err)
}

func TestOpen_PostgresUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := Open(ctx, "postgres://user:pw@127.0.0.1:1/agent?sslmode=disable&connect_timeout=1", DefaultOptions())
	assert.Nil(t, store)
	assert.Error(t, err)
}
