package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/justinabrahms/deskchess/internal/chess"
	"github.com/justinabrahms/deskchess/internal/computer"
	"github.com/justinabrahms/deskchess/internal/config"
	"github.com/justinabrahms/deskchess/internal/snapshot"
	"github.com/rs/zerolog/log"
)

// Service hosts the single game session. Every command, clock tick and
// delayed computer move goes through mu; the engine itself is unsynchronized.
type Service struct {
	mu     sync.Mutex
	engine *chess.Engine
	store  snapshot.Store
	hub    *Hub
	config *config.Config

	ctx    context.Context
	cancel context.CancelFunc

	computerTimer *time.Timer
	tickInterval  time.Duration
}

func NewService(engine *chess.Engine, store snapshot.Store, hub *Hub, config *config.Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		engine:       engine,
		store:        store,
		hub:          hub,
		config:       config,
		ctx:          ctx,
		cancel:       cancel,
		tickInterval: time.Second,
	}
}

// Router builds the HTTP surface: JSON commands under /api and the push
// channel on /ws.
func (s *Service) Router() *mux.Router {
	router := mux.NewRouter()

	// Add CORS middleware
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.HealthHandler).Methods("GET")
	api.HandleFunc("/game", s.GetGameHandler).Methods("GET")
	api.HandleFunc("/game/select", s.SelectHandler).Methods("GET")
	api.HandleFunc("/game/new", s.NewGameHandler).Methods("POST")
	api.HandleFunc("/game/moves", s.MakeMoveHandler).Methods("POST")
	api.HandleFunc("/game/undo", s.UndoHandler).Methods("POST")
	api.HandleFunc("/game/save", s.SaveHandler).Methods("POST")
	api.HandleFunc("/game/load", s.LoadHandler).Methods("POST")
	api.HandleFunc("/settings/computer", s.SetComputerHandler).Methods("POST")
	api.HandleFunc("/settings/difficulty", s.SetDifficultyHandler).Methods("POST")
	api.HandleFunc("/settings/sound", s.SetSoundHandler).Methods("POST")

	router.HandleFunc("/ws", s.WebSocketHandler)

	return router
}

// Start starts White's clock on the session the service was built with.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.engine.Start()
	s.scheduleComputer()
	s.publishState()
}

// RunClock drives the game clock once per second until ctx is done.
func (s *Service) RunClock(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// Close cancels any pending computer move.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopComputer()
	s.cancel()
}

func (s *Service) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f := s.engine.Tick(); f != nil {
		s.publishForfeit(f)
		s.publishState()
		return
	}

	if c := s.engine.Clock(); c.State == chess.ClockWhiteRunning || c.State == chess.ClockBlackRunning {
		s.hub.Broadcast(Update{GameID: s.engine.ID(), Type: UpdateClock, Data: newClockView(c)})
	}
}

// publishForfeit announces a loss on time. Caller holds mu.
func (s *Service) publishForfeit(f *chess.Forfeit) {
	s.stopComputer()
	s.hub.Broadcast(Update{GameID: s.engine.ID(), Type: UpdateForfeit, Data: forfeitView{
		Winner: f.Winner,
		Loser:  f.Loser,
		Status: s.engine.GetStatus(),
	}})
}

// scheduleComputer arms the delayed computer move when the computer is on
// move. The timer carries the game ID it was armed for. Caller holds mu.
func (s *Service) scheduleComputer() {
	s.stopComputer()
	if !s.engine.ComputerToMove() || s.engine.GetStatus() != chess.StatusActive {
		return
	}

	gameID := s.engine.ID()
	s.computerTimer = time.AfterFunc(s.config.Game.ComputerDelay, func() {
		s.playComputer(gameID)
	})
}

func (s *Service) stopComputer() {
	if s.computerTimer != nil {
		s.computerTimer.Stop()
		s.computerTimer = nil
	}
}

func (s *Service) playComputer(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.engine.PlayComputer(s.ctx, gameID)
	switch {
	case errors.Is(err, chess.ErrStaleGame), errors.Is(err, context.Canceled):
		log.Debug().Str("gameID", gameID).Err(err).Msg("Dropped computer move")
		return
	case err != nil:
		log.Warn().Str("gameID", gameID).Err(err).Msg("Computer could not move")
		s.publishState()
		return
	}

	s.publishMove(result)
}

// publishMove pushes the sound for a completed move, the new state, and
// arms the computer if it is now on move. Caller holds mu.
func (s *Service) publishMove(result *chess.MoveResult) {
	if s.engine.Settings().Sound {
		s.hub.Broadcast(Update{GameID: s.engine.ID(), Type: UpdateSound, Data: soundView{Sound: result.Sound}})
	}
	s.publishState()
	s.scheduleComputer()
}

func (s *Service) publishState() {
	s.hub.Broadcast(Update{GameID: s.engine.ID(), Type: UpdateState, Data: s.view()})
}

func (s *Service) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "deskchess",
	})
}

// GetGameHandler returns everything a renderer needs to draw the game.
func (s *Service) GetGameHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	view := s.view()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, view)
}

// SelectHandler returns the legal destinations for the piece on ?square=.
func (s *Service) SelectHandler(w http.ResponseWriter, r *http.Request) {
	sq, err := chess.ParseSquare(r.URL.Query().Get("square"))
	if err != nil {
		writeError(w, err)
		return
	}

	s.mu.Lock()
	highlights, err := s.engine.Select(sq)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}

	dests := make([]string, 0, len(highlights.Destinations))
	for _, d := range highlights.Destinations {
		dests = append(dests, d.String())
	}
	writeJSON(w, http.StatusOK, selectResponse{
		Selected:     highlights.Selected.String(),
		Destinations: dests,
	})
}

func (s *Service) NewGameHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.stopComputer()
	s.engine.NewGame()
	s.scheduleComputer()
	s.publishState()
	view := s.view()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, view)
}

// MakeMoveRequest is the body of POST /api/game/moves.
type MakeMoveRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Service) MakeMoveHandler(w http.ResponseWriter, r *http.Request) {
	var req MakeMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	from, err := chess.ParseSquare(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := chess.ParseSquare(req.To)
	if err != nil {
		writeError(w, err)
		return
	}

	s.mu.Lock()
	result, err := s.engine.MakeMove(from, to)
	if err != nil {
		s.mu.Unlock()
		log.Debug().Err(err).Str("from", req.From).Str("to", req.To).Msg("Move rejected")
		writeError(w, err)
		return
	}
	s.publishMove(result)
	view := s.view()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, moveResponse{Result: result, State: view})
}

func (s *Service) UndoHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.engine.ComputerToMove() {
		s.mu.Unlock()
		writeError(w, fmt.Errorf("%w: waiting for the computer", chess.ErrIllegalMove))
		return
	}
	undone, err := s.engine.Undo()
	if err != nil {
		s.mu.Unlock()
		writeError(w, err)
		return
	}
	s.scheduleComputer()
	s.publishState()
	view := s.view()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, undoResponse{Undone: newMoveView(undone), State: view})
}

// SaveHandler writes the current game to the configured store.
func (s *Service) SaveHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	state := s.engine.Snapshot()
	gameID := s.engine.ID()
	s.mu.Unlock()

	if err := snapshot.Save(r.Context(), s.store, state); err != nil {
		log.Error().Err(err).Str("gameID", gameID).Msg("Failed to save game")
		writeError(w, err)
		return
	}

	log.Info().Str("gameID", gameID).Int("plies", len(state.History)).Msg("Game saved")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"gameId": gameID,
		"plies":  len(state.History),
	})
}

// LoadHandler replaces the session with the saved game. The session is
// untouched when the saved bytes cannot be read or decoded.
func (s *Service) LoadHandler(w http.ResponseWriter, r *http.Request) {
	state, err := snapshot.Load(r.Context(), s.store)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load game")
		writeError(w, err)
		return
	}

	s.mu.Lock()
	s.stopComputer()
	if f := s.engine.Restore(state); f != nil {
		s.publishForfeit(f)
	} else {
		s.scheduleComputer()
	}
	s.publishState()
	view := s.view()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, view)
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

type difficultyRequest struct {
	Level int `json:"level"`
}

// SetComputerHandler switches between two humans and human vs computer.
// Either way a new game starts.
func (s *Service) SetComputerHandler(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.stopComputer()
	s.engine.SetComputerMode(req.Enabled)
	s.scheduleComputer()
	s.publishState()
	view := s.view()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, view)
}

func (s *Service) SetDifficultyHandler(w http.ResponseWriter, r *http.Request) {
	var req difficultyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if computer.ClampDifficulty(req.Level) != req.Level {
		http.Error(w, "Difficulty must be between 1 and 3", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.engine.SetDifficulty(req.Level)
	settings := s.engine.Settings()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, settings)
}

func (s *Service) SetSoundHandler(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.engine.SetSound(req.Enabled)
	settings := s.engine.Settings()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, settings)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, chess.ErrInvalidSquare), errors.Is(err, chess.ErrIllegalMove):
		return http.StatusBadRequest
	case errors.Is(err, chess.ErrEmptyHistory), errors.Is(err, chess.ErrTimeExpired):
		return http.StatusConflict
	case errors.Is(err, snapshot.ErrNoSnapshot):
		return http.StatusNotFound
	case errors.Is(err, snapshot.ErrDeserialization):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
