package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cuemby/flotilla/pkg/log"
	"github.com/cuemby/flotilla/pkg/metrics"
	"github.com/cuemby/flotilla/pkg/plan"
	"github.com/cuemby/flotilla/pkg/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Killer is the task-kill capability exposed to operators.
type Killer interface {
	KillTask(taskID string, destructive bool) error
}

// Server exposes the operator surface over HTTP: plan inspection and
// control, task inspection, metrics, and health.
type Server struct {
	managers map[string]plan.Manager
	store    storage.Store
	killer   Killer
	srv      *http.Server
	logger   zerolog.Logger
}

// NewServer creates an API server over the given plan managers.
func NewServer(managers map[string]plan.Manager, store storage.Store, killer Killer) *Server {
	return &Server{
		managers: managers,
		store:    store,
		killer:   killer,
		logger:   log.WithComponent("api"),
	}
}

// Handler returns the API's HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/plans", s.handlePlans)
		r.Route("/plans/{plan}", func(r chi.Router) {
			r.Get("/", s.handlePlan)
			r.Post("/interrupt", s.handleInterrupt)
			r.Post("/continue", s.handleProceed)
			r.Post("/restart", s.handleRestart)
			r.Post("/forceComplete", s.handleForceComplete)
		})
		r.Get("/tasks", s.handleTasks)
		r.Get("/tasks/{name}/status", s.handleTaskStatus)
		r.Post("/tasks/{name}/kill", s.handleKillTask)
	})
	return r
}

// Start serves the API on addr. Blocks until Shutdown or failure.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.Handler()}
	s.logger.Info().Str("addr", addr).Msg("api server listening")
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type planSummary struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Interrupted bool   `json:"interrupted"`
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	summaries := make(map[string]planSummary, len(s.managers))
	for name, m := range s.managers {
		summaries[name] = planSummary{
			Name:        name,
			Status:      string(m.Plan().Status()),
			Interrupted: m.IsInterrupted(),
		}
	}
	writeJSON(w, http.StatusOK, summaries)
}

type stepView struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Status  string   `json:"status"`
	TaskIDs []string `json:"taskIds,omitempty"`
}

type phaseView struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Status string     `json:"status"`
	Steps  []stepView `json:"steps"`
}

type planView struct {
	Name        string      `json:"name"`
	Status      string      `json:"status"`
	Interrupted bool        `json:"interrupted"`
	Phases      []phaseView `json:"phases"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	m, ok := s.managers[chi.URLParam(r, "plan")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown plan")
		return
	}
	p := m.Plan()
	view := planView{
		Name:        p.Name(),
		Status:      string(p.Status()),
		Interrupted: m.IsInterrupted(),
	}
	for _, phase := range p.Phases() {
		pv := phaseView{
			ID:     phase.ID(),
			Name:   phase.Name(),
			Status: string(phase.Status()),
		}
		for _, step := range phase.Steps() {
			pv.Steps = append(pv.Steps, stepView{
				ID:      step.ID(),
				Name:    step.Name(),
				Status:  string(step.Status()),
				TaskIDs: step.TaskIDs(),
			})
		}
		view.Phases = append(view.Phases, pv)
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleInterrupt(w http.ResponseWriter, r *http.Request) {
	m, ok := s.managers[chi.URLParam(r, "plan")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown plan")
		return
	}
	m.Interrupt()
	writeJSON(w, http.StatusOK, map[string]string{"result": "interrupted"})
}

func (s *Server) handleProceed(w http.ResponseWriter, r *http.Request) {
	m, ok := s.managers[chi.URLParam(r, "plan")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown plan")
		return
	}
	m.Proceed()
	writeJSON(w, http.StatusOK, map[string]string{"result": "proceeding"})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	s.stepAdmin(w, r, func(m plan.Manager, phaseID, stepID string) error {
		return m.Restart(phaseID, stepID)
	})
}

func (s *Server) handleForceComplete(w http.ResponseWriter, r *http.Request) {
	s.stepAdmin(w, r, func(m plan.Manager, phaseID, stepID string) error {
		return m.ForceComplete(phaseID, stepID)
	})
}

func (s *Server) stepAdmin(w http.ResponseWriter, r *http.Request, op func(plan.Manager, string, string) error) {
	m, ok := s.managers[chi.URLParam(r, "plan")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown plan")
		return
	}
	phaseID := r.URL.Query().Get("phase")
	stepID := r.URL.Query().Get("step")
	if phaseID == "" || stepID == "" {
		writeError(w, http.StatusBadRequest, "phase and step query parameters are required")
		return
	}
	if err := op(m, phaseID, stepID); err != nil {
		if errors.Is(err, plan.ErrStepNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

type taskView struct {
	Name         string    `json:"name"`
	TaskID       string    `json:"taskId"`
	AgentID      string    `json:"agentId,omitempty"`
	Hostname     string    `json:"hostname,omitempty"`
	ConfigTarget string    `json:"configTarget,omitempty"`
	State        string    `json:"state,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt,omitempty"`
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.Tasks()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]taskView, 0, len(tasks))
	for _, info := range tasks {
		view := taskView{
			Name:         info.Name,
			TaskID:       info.ID,
			AgentID:      info.AgentID,
			Hostname:     info.Hostname,
			ConfigTarget: info.ConfigTarget,
		}
		if status, err := s.store.Status(info.ID); err == nil {
			view.State = string(status.State)
			view.UpdatedAt = status.Timestamp
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.Task(chi.URLParam(r, "name"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown task")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status, err := s.store.Status(info.ID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no status received yet")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleKillTask(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.Task(chi.URLParam(r, "name"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown task")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	destructive := r.URL.Query().Get("destructive") == "true"
	if err := s.killer.KillTask(info.ID, destructive); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "killed", "taskId": info.ID})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
