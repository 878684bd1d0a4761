package probe

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"
)

// HTTPProbe performs an HTTP(S) request and considers the target ready
// when the response status is 2xx and, if configured, the response body
// matches Match.
type HTTPProbe struct {
	Host    string
	Port    int
	Scheme  string // default "http"
	Method  string // default "GET"
	Path    string // default "/"
	Match   *regexp.Regexp
	Timeout time.Duration

	// Transport allows passthrough tuning such as TLS verification.
	Transport *http.Transport
}

// Test performs the HTTP request and returns whether it was considered
// successful, per spec §4.A.
func (p *HTTPProbe) Test() bool {
	scheme := p.Scheme
	if scheme == "" {
		scheme = "http"
	}
	method := p.Method
	if method == "" {
		method = http.MethodGet
	}
	path := p.Path
	if path == "" {
		path = "/"
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	url := fmt.Sprintf("%s://%s:%d%s", scheme, p.Host, p.Port, path)
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return false
	}

	client := &http.Client{Timeout: timeout}
	if p.Transport != nil {
		client.Transport = p.Transport
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}
	if p.Match == nil {
		return true
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false
	}
	return p.Match.Match(body)
}
