package authflow

import (
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"instagram-mcp/pkg/logging"
)

//go:embed templates/success.html
var successHTML string

//go:embed templates/error.html
var errorHTML string

var errorTemplate = template.Must(template.New("error").Parse(errorHTML))

// Callback carries the query parameters Facebook redirects back with.
type Callback struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// Denied reports whether the user or provider rejected the authorization.
func (c *Callback) Denied() bool {
	return c.Error != ""
}

// CallbackServer is a short-lived loopback HTTP server that accepts exactly
// one OAuth redirect and then shuts down.
type CallbackServer struct {
	port     int
	server   *http.Server
	listener net.Listener
	results  chan *Callback
	failures chan error
	once     sync.Once
}

// NewCallbackServer listens on 127.0.0.1:port; port 0 picks a free port.
func NewCallbackServer(port int) *CallbackServer {
	return &CallbackServer{
		port:     port,
		results:  make(chan *Callback, 1),
		failures: make(chan error, 1),
	}
}

// Start binds the listener and begins serving. It returns the redirect URI
// to register with the authorization request. The server stops when ctx is
// cancelled or after the first callback.
func (s *CallbackServer) Start(ctx context.Context) (string, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		return "", fmt.Errorf("binding callback listener: %w", err)
	}
	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handle)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case s.failures <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	logging.Debug("AuthFlow", "callback server listening on port %d", s.port)
	return s.RedirectURI(), nil
}

// Wait blocks for the redirect, a server failure, or context cancellation.
func (s *CallbackServer) Wait(ctx context.Context) (*Callback, error) {
	select {
	case cb := <-s.results:
		return cb, nil
	case err := <-s.failures:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RedirectURI returns the loopback redirect URI for this server.
func (s *CallbackServer) RedirectURI() string {
	return fmt.Sprintf("http://localhost:%d/callback", s.port)
}

// Port returns the bound port.
func (s *CallbackServer) Port() int {
	return s.port
}

func (s *CallbackServer) handle(w http.ResponseWriter, r *http.Request) {
	accepted := false
	s.once.Do(func() {
		accepted = true
		s.accept(w, r)
	})
	if !accepted {
		http.Error(w, "callback already processed", http.StatusBadRequest)
	}
}

func (s *CallbackServer) accept(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	query := r.URL.Query()
	cb := &Callback{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}

	if cb.Denied() {
		_ = errorTemplate.Execute(w, map[string]string{
			"Error":       cb.Error,
			"Description": cb.ErrorDescription,
		})
	} else {
		_, _ = w.Write([]byte(successHTML))
	}

	select {
	case s.results <- cb:
	default:
	}

	// Let the response flush before tearing the server down.
	go func() {
		time.Sleep(time.Second)
		s.Stop()
	}()
}

// Stop shuts the server down. Safe to call more than once.
func (s *CallbackServer) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}
