package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mikeboe/deep-research/pkg/completion"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/store"
)

// ErrBusy is returned when another request is already advancing the session.
var ErrBusy = errors.New("research session is busy")

type Service struct {
	Store      store.Store
	Completion completion.Service
	Cfg        research.Config
	Logger     *slog.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewService(st store.Store, svc completion.Service, cfg research.Config) *Service {
	return &Service{
		Store:      st,
		Completion: svc,
		Cfg:        cfg,
		Logger:     slog.Default(),
		locks:      make(map[uuid.UUID]*sync.Mutex),
	}
}

type CreateSessionRequest struct {
	Topic string `json:"topic"`
}

type AnswersRequest struct {
	Answers []string `json:"answers"`
}

// ContinueResponse is the session after one iteration plus what the iteration did.
type ContinueResponse struct {
	Session *research.Session `json:"session"`
	Outcome *research.Outcome `json:"outcome"`
}

func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*research.Session, error) {
	engine := research.NewEngine(s.Completion, s.Cfg)
	engine.SetLogger(s.Logger)

	sess, err := engine.Start(ctx, req.Topic)
	if err != nil {
		return nil, err
	}
	if err := s.Store.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*research.Session, error) {
	return s.Store.Get(ctx, id)
}

func (s *Service) ListSessions(ctx context.Context) ([]research.Session, error) {
	return s.Store.List(ctx)
}

func (s *Service) GetSessionLogs(ctx context.Context, id uuid.UUID) ([]store.LogEntry, error) {
	return s.Store.Logs(ctx, id)
}

func (s *Service) DeleteSession(ctx context.Context, id uuid.UUID) error {
	unlock, err := s.lock(id)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
	return nil
}

// SubmitAnswers plans the session. The session is saved even when planning
// fails so the failed stage is visible.
func (s *Service) SubmitAnswers(ctx context.Context, id uuid.UUID, req AnswersRequest) (*research.Session, error) {
	unlock, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	engine := s.engine(id)
	runErr := engine.SubmitAnswers(ctx, sess, req.Answers)
	if err := s.Store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, runErr
}

// Continue runs one research iteration.
func (s *Service) Continue(ctx context.Context, id uuid.UUID) (*ContinueResponse, error) {
	unlock, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	engine := s.engine(id)
	outcome, runErr := engine.Continue(ctx, sess)
	if err := s.Store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return &ContinueResponse{Session: sess, Outcome: outcome}, runErr
}

// engine builds an engine that logs into the session's log and persists every
// intermediate state.
func (s *Service) engine(id uuid.UUID) *research.Engine {
	logger := slog.New(store.NewLogHandler(s.Store, id, s.Logger.Handler()))

	engine := research.NewEngine(s.Completion, s.Cfg)
	engine.SetLogger(logger)
	engine.OnStateUpdate = func(state research.Session) {
		if err := s.Store.Save(context.Background(), &state); err != nil {
			s.Logger.Error("Failed to save state", "session_id", id, "error", err)
		}
	}
	return engine
}

func (s *Service) lock(id uuid.UUID) (func(), error) {
	s.mu.Lock()
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	s.mu.Unlock()

	if !m.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrBusy, id)
	}
	return m.Unlock, nil
}
