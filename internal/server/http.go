package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/at-ishikawa/studydeck/internal/config"
)

const readHeaderTimeout = 10 * time.Second

// NewHTTPServer wraps handler in an http.Server on cfg.Port that also
// accepts HTTP/2 without TLS.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// ListenAndServe serves until srv is shut down. TLS is used when both a
// certificate and a key are configured.
func ListenAndServe(srv *http.Server, cfg config.ServerConfig) error {
	var err error
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		slog.Info("Starting server", "addr", srv.Addr, "tls", true)
		err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
	} else {
		slog.Info("Starting server", "addr", srv.Addr)
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
