package http

import (
	"encoding/json"
	"net/http"
)

type taskRow struct {
	Thread     int     `json:"thread"`
	Name       string  `json:"name"`
	Priority   int     `json:"priority"`
	Period     int64   `json:"period_us,omitempty"`
	LastCPU    int64   `json:"last_cpu_us"`
	WCET       int64   `json:"wcet_us"`
	LastWall   int64   `json:"last_wall_us"`
	WCWT       int64   `json:"wcwt_us"`
	CPUUsage   float64 `json:"cpu_usage"`
	Misses     uint64  `json:"deadline_misses"`
	Iterations uint64  `json:"iterations"`
	Overrun    bool    `json:"overrun"`
	Started    bool    `json:"started"`
	Shutdown   bool    `json:"shutdown"`
}

type taskTable struct {
	Tasks    []taskRow `json:"tasks"`
	TotalCPU float64   `json:"total_cpu"`
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		http.Error(w, "no task registry", http.StatusServiceUnavailable)
		return
	}

	out := taskTable{Tasks: []taskRow{}}
	for _, d := range s.tasks.Snapshot() {
		out.Tasks = append(out.Tasks, taskRow{
			Thread:     d.ThreadID,
			Name:       d.Name,
			Priority:   d.Priority,
			Period:     d.Period.Microseconds(),
			LastCPU:    d.LastCPU.Microseconds(),
			WCET:       d.WorstCPU.Microseconds(),
			LastWall:   d.LastWall.Microseconds(),
			WCWT:       d.WorstWall.Microseconds(),
			CPUUsage:   d.CPUUsage,
			Misses:     d.DeadlineMisses,
			Iterations: d.Iterations,
			Overrun:    d.Overrun,
			Started:    d.Started,
			Shutdown:   d.Shutdown,
		})
		out.TotalCPU += d.CPUUsage
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *Server) taskReport(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		http.Error(w, "no task registry", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.tasks.Report(w); err != nil {
		s.l.Warn("Error writing task report", "error", err)
	}
}

func (s *Server) resetTasks(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		http.Error(w, "no task registry", http.StatusServiceUnavailable)
		return
	}
	s.tasks.ResetAll()
	s.l.Info("Diagnostics reset")
	w.WriteHeader(http.StatusNoContent)
}
