package probe

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTCPProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	assert.NoError(t, err)
	port, _ := strconv.Atoi(portStr)

	p := NewTCPProbe(host, port)
	assert.True(t, p.Test())

	closed := NewTCPProbe(host, port+1)
	closed.Timeout = 200 * time.Millisecond
	assert.False(t, closed.Test())
}

func TestHTTPProbeHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	u, _ := url.Parse(server.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)

	p := &HTTPProbe{Host: host, Port: port}
	assert.True(t, p.Test())
}

func TestHTTPProbeMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("status: ok"))
	}))
	defer server.Close()

	u, _ := url.Parse(server.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)

	p := &HTTPProbe{Host: host, Port: port, Match: regexp.MustCompile(`status: ok`)}
	assert.True(t, p.Test())

	p.Match = regexp.MustCompile(`status: down`)
	assert.False(t, p.Test())
}

func TestTestWithRetries(t *testing.T) {
	attempts := 0
	c := checkerFunc(func() bool {
		attempts++
		return attempts == 3
	})

	ok := TestWithRetries(c, 5, time.Millisecond)
	assert.True(t, ok)
	assert.Equal(t, 3, attempts)
}

func TestTestWithRetriesExhausted(t *testing.T) {
	c := checkerFunc(func() bool { return false })
	assert.False(t, TestWithRetries(c, 3, time.Millisecond))
}

type checkerFunc func() bool

func (f checkerFunc) Test() bool { return f() }
