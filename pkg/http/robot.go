package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rtbot-platform/rtbot/pkg/cmdqueue"
	"github.com/rtbot-platform/rtbot/pkg/command"
	"github.com/rtbot-platform/rtbot/pkg/metrics"
	"github.com/rtbot-platform/rtbot/pkg/topic"
)

func (s *Server) queueDepths(w http.ResponseWriter, r *http.Request) {
	if s.queues == nil {
		http.Error(w, "no queues", http.StatusServiceUnavailable)
		return
	}
	out := make(map[string]int)
	for i, d := range s.queues.Depths() {
		out[metrics.QueueName(i+1)] = d
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// enqueueCommand accepts one command word in the body, in the same
// format as the MQTT command topics.
func (s *Server) enqueueCommand(w http.ResponseWriter, r *http.Request) {
	if s.queues == nil {
		http.Error(w, "no queues", http.StatusServiceUnavailable)
		return
	}
	dest, err := strconv.Atoi(chi.URLParam(r, "dest"))
	if err != nil {
		http.Error(w, "destination must be a number", http.StatusBadRequest)
		return
	}
	q, err := s.queues.Get(dest)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 64))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	word, err := topic.ParseCommandWord(body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Bad command word: %s", err)
		return
	}

	q.Enqueue(word)
	s.l.Debug("Command from API", "destination", dest, "message", word)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) muteHorn(w http.ResponseWriter, r *http.Request) {
	if s.queues == nil {
		http.Error(w, "no queues", http.StatusServiceUnavailable)
		return
	}
	s.queues.MustGet(cmdqueue.HornQueue).Enqueue(command.HornMute)
	s.l.Info("Horn muted")
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) lastStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		http.Error(w, "no status manager", http.StatusServiceUnavailable)
		return
	}
	rep, ok := s.status.LastReport()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rep)
}
