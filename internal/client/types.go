package client

import (
	"encoding/json"
	"time"
)

// ServiceSpec is the remote service's self-description document. Only the
// paths map is interesting here; the rest of the document is ignored.
type ServiceSpec struct {
	Paths map[string]json.RawMessage `json:"paths"`
}

// HasPath reports whether the self-description lists the given route.
func (s *ServiceSpec) HasPath(route string) bool {
	_, ok := s.Paths[route]
	return ok
}

// Routes returns the listed route paths.
func (s *ServiceSpec) Routes() []string {
	routes := make([]string, 0, len(s.Paths))
	for path := range s.Paths {
		routes = append(routes, path)
	}
	return routes
}

// JobSubmission is the body of a job submission request.
type JobSubmission struct {
	Name           string                 `json:"name"`
	Symbols        []string               `json:"symbols"`
	StartDate      string                 `json:"start_date"`
	EndDate        string                 `json:"end_date"`
	StrategyType   string                 `json:"strategy_type"`
	InitialCapital float64                `json:"initial_capital,omitempty"`
	Parameters     map[string]interface{} `json:"parameters,omitempty"`
}

// SubmitReply is the service's acknowledgement of a submitted job.
type SubmitReply struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatusDoc is a job status record as reported by the service.
type StatusDoc struct {
	JobID               string     `json:"job_id"`
	Name                string     `json:"name"`
	Status              string     `json:"status"`
	Progress            float64    `json:"progress"`
	Message             string     `json:"message"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
}

// ResultsDoc is a loosely-structured job results document. Upstream result
// shapes vary, so summary and metrics stay as raw maps and are interpreted
// by the metric extraction shim, not by a rigid schema here.
type ResultsDoc struct {
	JobID   string                     `json:"job_id"`
	Summary map[string]json.RawMessage `json:"summary"`
	Metrics map[string]json.RawMessage `json:"metrics"`
	Trades  []json.RawMessage          `json:"trades,omitempty"`
}
