package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/gorilla/websocket"
)

const noResultsAnswer = "I couldn't find relevant information in the uploaded documents."

type WSHandler struct {
	qa       QAService
	index    ReadyChecker
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(qa QAService, index ReadyChecker, hub *Hub) *WSHandler {
	return &WSHandler{
		qa:    qa,
		index: index,
		hub:   hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve upgrades the connection and answers one question per text
// message until the client disconnects.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	c := h.hub.add(conn)
	defer func() {
		h.hub.remove(c)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read failed: %v", err)
			}
			return
		}

		for _, event := range h.handle(r, data, c) {
			if err := c.send(event); err != nil {
				log.Printf("ws: write failed: %v", err)
				return
			}
		}
	}
}

// handle sends progress events itself and returns the final events
func (h *WSHandler) handle(r *http.Request, data []byte, c *client) []Event {
	var req ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return []Event{{Type: EventError, Message: "invalid message"}}
	}
	if strings.TrimSpace(req.Message) == "" {
		return []Event{{Type: EventError, Message: domain.ErrEmptyQuery.Message}}
	}

	if err := c.send(Event{Type: EventProcessing, Message: "searching documents..."}); err != nil {
		return nil
	}

	results, err := h.qa.Retrieve(r.Context(), req.Message)
	if err != nil {
		var de *domain.DomainError
		if errors.As(err, &de) {
			return []Event{{Type: EventError, Message: de.Message}}
		}
		return []Event{{Type: EventError, Message: "error processing query: " + err.Error()}}
	}
	if !h.index.Ready() {
		return []Event{{Type: EventError, Message: noDocumentsMessage}}
	}
	if len(results) == 0 {
		return []Event{{Type: EventResponse, Answer: noResultsAnswer}}
	}

	sources := sourcesToResponse(results)
	if err := c.send(Event{Type: EventSources, Sources: sources}); err != nil {
		return nil
	}
	if err := c.send(Event{Type: EventGenerating, Message: "generating answer..."}); err != nil {
		return nil
	}

	out := h.qa.Answer(r.Context(), results, req.Message)
	return []Event{{Type: EventResponse, Answer: out.Answer, Sources: sources}}
}
