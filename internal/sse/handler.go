package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// writeTimeout bounds a single event write; it is pushed forward after each one.
const writeTimeout = 60 * time.Second

// connectedData is the payload of the first event on every stream.
type connectedData struct {
	ClientID string `json:"client_id"`
	Scanning bool   `json:"scanning"`
}

// Handler serves the change feed as a text/event-stream, one subscription
// per request.
type Handler struct {
	manager   *Manager
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewHandler creates a handler subscribing clients to manager.
func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{
		manager:   manager,
		logger:    logger,
		heartbeat: 30 * time.Second,
	}
}

// stream writes events to one client.
type stream struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	logger *slog.Logger
}

func (s *stream) send(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil {
		return err
	}
	if err := s.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		s.logger.Debug("write deadline unsupported", "error", err)
	}
	return nil
}

// ServeHTTP opens the stream, announces the client id and whether a scan is
// running, then relays photo, tag and thumbnail events until either side goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	if ctx.Err() != nil {
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	s := &stream{w: w, rc: http.NewResponseController(w), logger: h.logger}
	if err := s.rc.Flush(); err != nil {
		h.logger.Error("response does not support streaming", "error", err)
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	client, err := h.manager.Connect()
	if err != nil {
		h.logger.Error("failed to subscribe feed client", "error", err)
		http.Error(w, "failed to subscribe", http.StatusInternalServerError)
		return
	}
	defer h.manager.Disconnect(client.ID)

	log := h.logger.With("client", client.ID)
	s.logger = log

	hello := connectedData{ClientID: client.ID, Scanning: h.manager.IsScanning()}
	if err := s.send("connected", hello); err != nil {
		log.Warn("failed to greet feed client", "error", err)
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		var event Event
		select {
		case e, ok := <-client.Events:
			if !ok {
				log.Debug("feed closed")
				return
			}
			event = e
		case <-ticker.C:
			event = NewHeartbeatEvent()
		case <-client.Done:
			log.Debug("feed closed")
			return
		case <-ctx.Done():
			log.Debug("feed client went away")
			return
		}

		// A failed write means the client is gone.
		if err := s.send(string(event.Type), event); err != nil {
			log.Debug("feed write failed", "event", event.Type, "error", err)
			return
		}
	}
}
