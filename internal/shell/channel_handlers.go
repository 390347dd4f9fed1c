package shell

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/report-zone/mfe-demo-sub000/internal/channel"
)

const (
	sseBuffer    = 16
	sseHeartbeat = 25 * time.Second
)

// StoreEntry is the body of the store endpoints.
type StoreEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Shell) handleStoreGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, ok, err := s.opts.Store.Get(r.Context(), key)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("store read failed")
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("key %q is not set", key))
		return
	}
	writeJSON(w, http.StatusOK, StoreEntry{Key: key, Value: value})
}

func (s *Shell) handleStorePut(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var entry StoreEntry
	if !decodeInput(w, r, &entry) {
		return
	}
	if err := s.opts.Store.Set(r.Context(), key, entry.Value); err != nil {
		if errors.Is(err, channel.ErrEmptyKey) {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", err)
			return
		}
		s.log.Error().Err(err).Str("key", key).Msg("store write failed")
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err)
		return
	}
	writeJSON(w, http.StatusOK, StoreEntry{Key: key, Value: entry.Value})
}

func (s *Shell) handleStoreDelete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := s.opts.Store.Remove(r.Context(), key); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("store remove failed")
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents streams the requested host bus topics as Server-Sent Events.
func (s *Shell) handleEvents(w http.ResponseWriter, r *http.Request) {
	names := r.URL.Query()["topic"]
	if len(names) == 0 {
		for _, t := range channel.Topics() {
			if t != channel.SharedChanged {
				names = append(names, string(t))
			}
		}
	}
	topics := make([]channel.Topic, 0, len(names))
	for _, name := range names {
		t, err := channel.ParseTopic(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, "UNKNOWN_TOPIC", err)
			return
		}
		topics = append(topics, t)
	}
	s.stream(w, r, s.opts.Bus, topics)
}

// handleSharedEvents streams the session's shared:changed notifications.
func (s *Shell) handleSharedEvents(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, s.gateOf(r).Shared().Bus(), []channel.Topic{channel.SharedChanged})
}

func (s *Shell) stream(w http.ResponseWriter, r *http.Request, bus channel.Bus, topics []channel.Topic) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}

	events := make(chan channel.Event, sseBuffer)
	for _, t := range topics {
		unsubscribe, err := bus.Subscribe(t, func(ev channel.Event) {
			select {
			case events <- ev:
			default:
				s.log.Warn().Str("topic", string(ev.Topic)).Msg("event stream is full, dropping event")
			}
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, "UNKNOWN_TOPIC", err)
			return
		}
		defer unsubscribe()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev := <-events:
			sendSSE(w, flusher, string(ev.Topic), ev)
		}
	}
}

// sendSSE writes one SSE event and flushes. data is JSON-marshalled.
func sendSSE(w http.ResponseWriter, f http.Flusher, event string, data any) {
	b, _ := json.Marshal(data)
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
	f.Flush()
}

// handlePublish publishes the JSON body on a host bus topic.
func (s *Shell) handlePublish(w http.ResponseWriter, r *http.Request) {
	topic, err := channel.ParseTopic(chi.URLParam(r, "topic"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "UNKNOWN_TOPIC", err)
		return
	}
	payload, ok := readRaw(w, r)
	if !ok {
		return
	}
	if err := s.opts.Bus.Publish(r.Context(), topic, payload); err != nil {
		writeError(w, http.StatusBadRequest, "PUBLISH_FAILED", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Shell) handleSharedSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gateOf(r).Shared().Snapshot())
}

func (s *Shell) handleSharedClear(w http.ResponseWriter, r *http.Request) {
	s.gateOf(r).Shared().Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Shell) handleSharedGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, ok := s.gateOf(r).Shared().Get(key)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("key %q is not set", key))
		return
	}
	writeJSON(w, http.StatusOK, value)
}

func (s *Shell) handleSharedPut(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	raw, ok := readRaw(w, r)
	if !ok {
		return
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}
	if err := s.gateOf(r).Shared().Set(key, value); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}
	writeJSON(w, http.StatusOK, value)
}

func (s *Shell) handleSharedDelete(w http.ResponseWriter, r *http.Request) {
	s.gateOf(r).Shared().Delete(chi.URLParam(r, "key"))
	w.WriteHeader(http.StatusNoContent)
}
