// Package server is the ops HTTP surface: read access to mirrored
// entities, the last batch report, and a manual sync trigger.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	mirrerrs "github.com/molehill/hnmirror/internal/errors"
)

type (
	// Server is the HTTP portion of the ops surface.
	Server struct {
		http.Server
	}

	// Config holds all of the different options for making a server.
	Config struct {
		Port int
	}
)

func newServer(port int, r *mux.Router) *Server {
	return &Server{
		Server: http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			Handler:      handlers.RecoveryHandler()(accessLogWrapper{inner: r}),
		},
	}
}

func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("error encoding json response: %s", err)
	}

	return nil
}

// Implements [http.Handler] to wrap each call with an access log.
type accessLogWrapper struct {
	inner http.Handler
}

func (alw accessLogWrapper) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	writer := &respCodeWriter{ResponseWriter: w}
	alw.inner.ServeHTTP(writer, r)

	slog.Info("request completed",
		"method", r.Method,
		"url", r.URL.String(),
		"duration", time.Since(start),
		"status_code", writer.code,
	)
}

type respCodeWriter struct {
	http.ResponseWriter
	code int
}

func (w *respCodeWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// HandlerFuncE is a modified type of [http.HandlerFunc] that returns an error.
type HandlerFuncE func(w http.ResponseWriter, r *http.Request) error

func (f HandlerFuncE) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := f(w, r)
	if err == nil {
		return
	}

	// Either it's already a structured error, or coerce it to one
	sErr := &mirrerrs.Error{}
	if !errors.As(err, &sErr) {
		sErr = mirrerrs.E(http.StatusInternalServerError, err)
	}

	WriteJSON(w, sErr.Status, sErr)
}
