// Package taskapi serves the task CRUD endpoints, the priority classifier,
// and the user-sync trigger. It is an independent subsystem from the bot.
package taskapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Addr         string        `envconfig:"ADDR" split_words:"true" default:":8080"`
	ModelCSVPath string        `envconfig:"MODEL_CSV_PATH" split_words:"true" default:"tasks.csv"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" split_words:"true" default:"10s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" split_words:"true" default:"10s"`
}

type Task struct {
	ID          int64  `json:"id"`
	Name        string `json:"task_name"`
	Description string `json:"task_description"`
}

type CreateTask struct {
	Name        string `json:"task_name"`
	Description string `json:"task_description"`
}

type PredictRequest struct {
	Description string `json:"task_description"`
}

type PredictResponse struct {
	Description string `json:"task_description"`
	Priority    string `json:"predicted_priority"`
}

// SyncTrigger runs one background user sync.
type SyncTrigger interface {
	SyncOnce(ctx context.Context) (int, error)
}

type Server struct {
	mu     sync.Mutex
	tasks  map[int64]Task
	nextID int64
	model  *Classifier
	syncer SyncTrigger
}

func NewServer(model *Classifier, syncer SyncTrigger) *Server {
	return &Server{
		tasks:  make(map[int64]Task),
		model:  model,
		syncer: syncer,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks", s.listTasks)
	mux.HandleFunc("POST /tasks", s.createTask)
	mux.HandleFunc("PUT /tasks/{id}", s.updateTask)
	mux.HandleFunc("DELETE /tasks/{id}", s.deleteTask)
	mux.HandleFunc("POST /predict", s.predict)
	mux.HandleFunc("POST /sync-users", s.syncUsers)
	return mux
}

func (s *Server) listTasks(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var in CreateTask
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	s.nextID++
	task := Task{ID: s.nextID, Name: in.Name, Description: in.Description}
	s.tasks[task.ID] = task
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, task)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var in CreateTask
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[id]
	if !exists {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	if task.Name == in.Name && task.Description == in.Description {
		writeError(w, http.StatusBadRequest, "For data to change, there must be changes.")
		return
	}

	task = Task{ID: id, Name: in.Name, Description: in.Description}
	s.tasks[id] = task
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; !exists {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	delete(s.tasks, id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted"})
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	if s.model == nil {
		writeError(w, http.StatusServiceUnavailable, "classifier model is not loaded")
		return
	}

	var in PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		Description: in.Description,
		Priority:    s.model.Predict(in.Description),
	})
}

func (s *Server) syncUsers(w http.ResponseWriter, _ *http.Request) {
	if s.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "user sync is not configured")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if n, err := s.syncer.SyncOnce(ctx); err != nil {
			log.Error().Err(err).Msg("triggered user sync failed")
		} else {
			log.Info().Int("added", n).Msg("triggered user sync done")
		}
	}()

	writeJSON(w, http.StatusOK, map[string]string{"message": "User data sync is running in the background."})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var id int64
	for _, ch := range r.PathValue("id") {
		if ch < '0' || ch > '9' {
			writeError(w, http.StatusBadRequest, "invalid task id")
			return 0, false
		}
		id = id*10 + int64(ch-'0')
	}
	if r.PathValue("id") == "" {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write response failed")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
