package httputil

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *ClientConfig
		wantPerHost int
		wantTimeout time.Duration
	}{
		{"nil uses defaults", nil, 20, 30 * time.Second},
		{"google api", GoogleAPIConfig(), 32, 30 * time.Second},
		{"custom", &ClientConfig{MaxIdleConnsPerHost: 3, ResponseTimeout: time.Second}, 3, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.cfg)
			assert.Equal(t, tt.wantTimeout, c.Timeout)

			tr, ok := c.Transport.(*http.Transport)
			require.True(t, ok)
			assert.Equal(t, tt.wantPerHost, tr.MaxIdleConnsPerHost)
			assert.True(t, tr.ForceAttemptHTTP2)
		})
	}
}

func TestNewClient_DistinctTransports(t *testing.T) {
	a, b := NewClient(nil), NewClient(nil)
	assert.NotSame(t, a.Transport, b.Transport)
}
