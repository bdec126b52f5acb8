package scraper

import (
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"time"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:127.0) Gecko/20100101 Firefox/127.0",
}

// Session is the per-site HTTP state: client, cookie jar, and user agent.
// Reset discards all of it, which is how a blocked scraper gets a clean
// identity for its next attempt.
type Session struct {
	client    *http.Client
	userAgent string
}

// NewSession creates a session with a fresh cookie jar and a random user
// agent.
func NewSession(timeout time.Duration) *Session {
	s := &Session{}
	s.Reset()
	s.client.Timeout = timeout
	return s
}

// Reset replaces the cookie jar and rotates the user agent, keeping the
// configured timeout.
func (s *Session) Reset() {
	jar, _ := cookiejar.New(nil)
	timeout := 30 * time.Second
	if s.client != nil {
		timeout = s.client.Timeout
	}
	s.client = &http.Client{Jar: jar, Timeout: timeout}
	s.userAgent = userAgents[rand.Intn(len(userAgents))]
}

// Do sends the request with the session's identity headers.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")
	return s.client.Do(req)
}
