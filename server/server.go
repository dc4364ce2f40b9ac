// go-iso15693
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-iso15693.
//
// go-iso15693 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-iso15693 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-iso15693; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package server exposes a Controller to UI clients over HTTP and a
// websocket event stream, optionally advertised with mDNS.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	iso15693 "github.com/ZaparooProject/go-iso15693"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const shutdownTimeout = 5 * time.Second

// Config configures a Server
type Config struct {
	Controller *iso15693.Controller
	Logger     *slog.Logger
	// ServiceName is the mDNS instance name; empty derives one from the hostname
	ServiceName string
	// MDNS advertises the server on the local network when set
	MDNS bool
}

// Server is the HTTP and websocket front end of a Controller
type Server struct {
	controller *iso15693.Controller
	logger     *slog.Logger
	hub        *hub
	router     *mux.Router
	upgrader   websocket.Upgrader
	baseCtx    context.Context
	cfg        Config
}

// ScanBody is the POST /api/scan request body. Mode is "read" or "write";
// Operation is required for writes; Security defaults to the configured mode.
type ScanBody struct {
	Mode      string `json:"mode"`
	Operation string `json:"operation,omitempty"`
	Security  string `json:"security,omitempty"`
}

// RecordEntry is a record with its list position
type RecordEntry struct {
	Record  iso15693.ScanRecord `json:"record"`
	Display string              `json:"display"`
	Index   int                 `json:"index"`
}

// New creates a server for cfg.Controller and subscribes to its events
func New(cfg Config) (*Server, error) {
	if cfg.Controller == nil {
		return nil, fmt.Errorf("%w: nil controller", iso15693.ErrInvalidParameter)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		controller: cfg.Controller,
		logger:     logger,
		hub:        newHub(logger),
		baseCtx:    context.Background(),
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.routes()

	cfg.Controller.OnRecordAdded(func(index int, record iso15693.ScanRecord) {
		s.hub.broadcast(Event{Type: EventRecordAdded, Payload: entry(index, record)})
	})
	cfg.Controller.OnOutcome(func(out iso15693.Outcome) {
		s.logger.Info("scan finished", "outcome", out.String(), "silent", out.Silent)
		s.hub.broadcast(Event{Type: EventOutcome, Payload: out})
	})
	return s, nil
}

func (s *Server) routes() {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/scan", s.beginScan).Methods(http.MethodPost)
	api.HandleFunc("/scan/cancel", s.cancelScan).Methods(http.MethodPost)
	api.HandleFunc("/records", s.listRecords).Methods(http.MethodGet)
	api.HandleFunc("/records/{index}", s.deleteRecord).Methods(http.MethodDelete)
	r.HandleFunc("/ws", s.serveWS).Methods(http.MethodGet)
	s.router = r
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on ln until ctx is done. Sessions started
// through the API are canceled when ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.baseCtx = ctx
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	if s.cfg.MDNS {
		if addr, ok := ln.Addr().(*net.TCPAddr); ok {
			mdns, err := advertise(s.cfg.ServiceName, addr.Port)
			if err != nil {
				s.logger.Warn("mDNS advertisement unavailable", "error", err)
			} else {
				s.logger.Info("mDNS service registered", "type", ServiceType, "port", addr.Port)
				defer mdns.Shutdown()
			}
		}
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("event server listening", "addr", ln.Addr().String())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.hub.closeAll()
		return err
	case <-ctx.Done():
	}

	s.controller.Cancel()
	s.hub.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Clients returns the number of connected websocket clients
func (s *Server) Clients() int {
	return s.hub.count()
}

func (s *Server) beginScan(w http.ResponseWriter, r *http.Request) {
	var body ScanBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	req, err := s.scanRequest(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	session, err := s.controller.BeginScan(s.baseCtx, req)
	if err != nil {
		respondError(w, scanStatus(err), err)
		return
	}
	s.logger.Info("scan started", "session", session.ID, "kind", req.Kind.String())
	respondJSON(w, http.StatusAccepted, map[string]string{"sessionId": session.ID})
}

func (s *Server) scanRequest(body ScanBody) (iso15693.ScanRequest, error) {
	var req iso15693.ScanRequest
	switch body.Mode {
	case "read", "":
		req = s.controller.NewReadRequest()
	case "write":
		op, err := iso15693.ParseOperationMode(body.Operation)
		if err != nil {
			return req, err
		}
		req = s.controller.NewWriteRequest(op)
	default:
		return req, fmt.Errorf("%w: mode %q", iso15693.ErrInvalidParameter, body.Mode)
	}

	if body.Security != "" {
		mode, err := iso15693.ParseSecurityMode(body.Security)
		if err != nil {
			return req, err
		}
		req.Security = mode
	}
	return req, req.Validate()
}

func scanStatus(err error) int {
	switch {
	case errors.Is(err, iso15693.ErrSessionActive):
		return http.StatusConflict
	case errors.Is(err, iso15693.ErrInvalidParameter):
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

func (s *Server) cancelScan(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"canceled": s.controller.Cancel()})
}

func (s *Server) listRecords(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.entries())
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("%w: index", iso15693.ErrInvalidParameter))
		return
	}

	removed, err := s.controller.DeleteRecord(index)
	if err != nil {
		respondError(w, http.StatusNotFound, err)
		return
	}
	s.hub.broadcast(Event{Type: EventRecords, Payload: s.entries()})
	respondJSON(w, http.StatusOK, entry(index, removed))
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := s.hub.add(conn, Event{Type: EventRecords, Payload: s.entries()})
	defer s.hub.remove(c)

	// clients only listen; reading drives ping/close handling
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) entries() []RecordEntry {
	records := s.controller.Records()
	out := make([]RecordEntry, len(records))
	for i, rec := range records {
		out[i] = entry(i, rec)
	}
	return out
}

func entry(index int, record iso15693.ScanRecord) RecordEntry {
	return RecordEntry{Index: index, Record: record, Display: record.String()}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
