package netutil

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetClientIPFromRequest_ForwardedFor(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.RemoteAddr = "10.0.0.1:52180"

	ip, err := GetClientIPFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestGetClientIPFromRequest_RemoteAddrFallback(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	req.RemoteAddr = "198.51.100.4:41000"

	ip, err := GetClientIPFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.4", ip)
}

func TestGetClientIPFromRequest_InvalidForwardedFor(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("X-Forwarded-For", "not-an-ip")

	_, err := GetClientIPFromRequest(req)
	assert.Error(t, err)
}
