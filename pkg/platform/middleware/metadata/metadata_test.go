package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clocklayer/pkg/requestcontext"
)

func TestClientIP(t *testing.T) {
	proxies, err := ParseProxies([]string{"10.0.0.0/8", "::1", " "})
	require.NoError(t, err)

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"untrusted peer cannot spoof the chain", map[string]string{"X-Forwarded-For": "203.0.113.66"}, "192.0.2.4:5555", "192.0.2.4"},
		{"untrusted peer cannot spoof real ip", map[string]string{"X-Real-IP": "203.0.113.66"}, "192.0.2.4:5555", "192.0.2.4"},
		{"trusted proxy appends the client", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "10.0.0.2:443", "198.51.100.1"},
		{"forged left entries are skipped", map[string]string{"X-Forwarded-For": "203.0.113.66, 198.51.100.1, 10.0.0.1"}, "10.0.0.2:443", "198.51.100.1"},
		{"garbage hops are skipped", map[string]string{"X-Forwarded-For": "198.51.100.1, not-an-ip, "}, "10.0.0.2:443", "198.51.100.1"},
		{"real ip behind a trusted proxy", map[string]string{"X-Real-IP": " 198.51.100.7 "}, "10.0.0.2:443", "198.51.100.7"},
		{"all hops trusted", map[string]string{"X-Forwarded-For": "10.1.1.1"}, "10.0.0.2:443", "10.0.0.2"},
		{"trusted ipv6 loopback", map[string]string{"X-Forwarded-For": "2001:db8::5"}, "[::1]:5555", "2001:db8::5"},
		{"remote without port", nil, "192.0.2.9", "192.0.2.9"},
		{"no address at all", nil, "", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, proxies.ClientIP(req))
		})
	}
}

func TestNoProxiesMeansSocketAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")

	var none *Proxies
	assert.Equal(t, "127.0.0.1", none.ClientIP(req))
}

func TestParseProxiesRejectsGarbage(t *testing.T) {
	_, err := ParseProxies([]string{"10.0.0.0/33"})
	require.Error(t, err)
	_, err = ParseProxies([]string{"proxy.internal"})
	require.Error(t, err)
}

func TestClientMetadataStoresAddressAndUserAgent(t *testing.T) {
	proxies, err := ParseProxies([]string{"127.0.0.1"})
	require.NoError(t, err)

	var ip, ua string
	h := ClientMetadata(proxies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = requestcontext.ClientIP(r.Context())
		ua = requestcontext.UserAgent(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone)")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "198.51.100.1", ip)
	assert.Equal(t, "Mozilla/5.0 (iPhone)", ua)
}
