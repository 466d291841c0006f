package oclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// SuccessMessage is the plain-text body shown in the browser once the
// redirect has been captured.
const SuccessMessage = "You may close the browser now"

// callbackServer is a one-shot loopback listener: it records the full URI
// of the first request it receives and answers every request with
// SuccessMessage.
type callbackServer struct {
	srv    *http.Server
	uris   chan string
	errs   chan error
	once   sync.Once
	logger *slog.Logger
}

// listenCallback binds addr and starts serving immediately, so the browser
// can be opened as soon as it returns.
func listenCallback(addr string, logger *slog.Logger) (*callbackServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	cb := &callbackServer{
		uris:   make(chan string, 1),
		errs:   make(chan error, 1),
		logger: logger,
	}
	cb.srv = &http.Server{
		Handler:           http.HandlerFunc(cb.serveHTTP),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := cb.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cb.errs <- err
		}
	}()
	return cb, nil
}

func (cb *callbackServer) serveHTTP(w http.ResponseWriter, r *http.Request) {
	cb.logger.Info("authorization redirect received", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, SuccessMessage)

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	uri := scheme + "://" + r.Host + r.URL.RequestURI()
	cb.once.Do(func() {
		cb.uris <- uri
	})
}

// wait blocks until the first redirect arrives, the listener fails, or ctx
// is done, then shuts the listener down. A timeout of zero waits forever.
func (cb *callbackServer) wait(ctx context.Context, timeout time.Duration) (string, error) {
	defer cb.close()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	select {
	case uri := <-cb.uris:
		return uri, nil
	case err := <-cb.errs:
		return "", fmt.Errorf("redirect listener failed: %w", err)
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for authorization redirect: %w", ctx.Err())
	}
}

func (cb *callbackServer) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cb.srv.Shutdown(ctx); err != nil {
		cb.logger.Warn("redirect listener shutdown", "err", err)
	}
}
