// package testing holds doubles and file helpers shared by the package tests
package testing

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
)

// ErrInjected is returned by every failing double in this package.
var ErrInjected = errors.New("injected failure")

// FailingWriter rejects every write.
type FailingWriter struct{}

func (FailingWriter) Write([]byte) (int, error) { return 0, ErrInjected }

// BudgetWriter forwards writes to an underlying writer until its budget is spent.
type BudgetWriter struct {
	budget int
	target io.Writer
}

// NewBudgetWriter allows n successful writes to target.
func NewBudgetWriter(n int, target io.Writer) *BudgetWriter {
	return &BudgetWriter{budget: n, target: target}
}

func (w *BudgetWriter) Write(p []byte) (int, error) {
	if w.budget <= 0 {
		return 0, ErrInjected
	}
	w.budget--
	return w.target.Write(p)
}

// FailingBody is a response body whose reads always fail.
type FailingBody struct{}

func (FailingBody) Read([]byte) (int, error) { return 0, ErrInjected }
func (FailingBody) Close() error             { return nil }

// StubTransport answers requests without touching the network and keeps the URLs it was asked for.
type StubTransport struct {
	mu      sync.Mutex
	respond func(*http.Request) (*http.Response, error)
	seen    []string
}

// NewStubTransport builds a transport that delegates every request to respond.
func NewStubTransport(respond func(*http.Request) (*http.Response, error)) *StubTransport {
	return &StubTransport{respond: respond}
}

// RespondWith returns a transport that answers with status and body.
func RespondWith(status int, body io.ReadCloser) *StubTransport {
	return NewStubTransport(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: status, Body: body, Header: http.Header{}, Request: req}, nil
	})
}

// RespondText returns a transport that answers 200 with a text body.
func RespondText(body string) *StubTransport {
	return NewStubTransport(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body)), Header: http.Header{}, Request: req}, nil
	})
}

// Unreachable returns a transport whose round trips fail.
func Unreachable() *StubTransport {
	return NewStubTransport(func(*http.Request) (*http.Response, error) { return nil, ErrInjected })
}

func (s *StubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	s.seen = append(s.seen, req.URL.String())
	s.mu.Unlock()
	return s.respond(req)
}

// Seen lists the request URLs in arrival order.
func (s *StubTransport) Seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

// AssertFileExists fails the test when path cannot be stat'ed.
func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected %s to exist: %v", path, err)
	}
}

// MustReadFile returns the contents of path or stops the test.
func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
