package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propsage/compval/internal/config"
)

func TestServer_StartStop(t *testing.T) {
	srv := NewServer(config.ServerConfig{Port: 0}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), nil)

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	// Give the listener a moment to bind before shutting down.
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err, "a clean shutdown is not a Start error")
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestServer_HandlerAccessor(t *testing.T) {
	h := http.NewServeMux()
	srv := NewServer(config.ServerConfig{Port: 8080}, h, nil)
	assert.Equal(t, http.Handler(h), srv.Handler())
}
