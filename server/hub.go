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

package server

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event types pushed to websocket clients
const (
	EventRecordAdded = "recordAdded"
	EventOutcome     = "outcome"
	EventRecords     = "records"
)

// Event is one message on the websocket stream
type Event struct {
	Payload any    `json:"payload"`
	Type    string `json:"type"`
}

type client struct {
	conn *websocket.Conn
	id   string
}

// hub tracks connected clients and fans events out to them. Writes happen
// under the hub lock so a connection never has two concurrent writers.
type hub struct {
	clients map[string]*client
	logger  *slog.Logger
	mu      sync.Mutex
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		clients: make(map[string]*client),
		logger:  logger,
	}
}

// add registers conn and sends it the greeting events
func (h *hub) add(conn *websocket.Conn, greeting ...Event) *client {
	c := &client{conn: conn, id: uuid.NewString()}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	for _, ev := range greeting {
		if !h.writeLocked(c, ev) {
			break
		}
	}
	h.logger.Debug("websocket client connected", "client", c.id, "clients", len(h.clients))
	return c
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	_ = c.conn.Close()
	h.logger.Debug("websocket client disconnected", "client", c.id)
}

func (h *hub) broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		h.writeLocked(c, ev)
	}
}

// writeLocked sends ev to c and drops the client if the write fails
func (h *hub) writeLocked(c *client, ev Event) bool {
	if err := c.conn.WriteJSON(ev); err != nil {
		h.logger.Warn("websocket write failed", "client", c.id, "error", err)
		_ = c.conn.Close()
		delete(h.clients, c.id)
		return false
	}
	return true
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		_ = c.conn.Close()
		delete(h.clients, id)
	}
}
