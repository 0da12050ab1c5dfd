package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/justinabrahms/deskchess/internal/chess"
	"github.com/justinabrahms/deskchess/internal/computer"
	"github.com/justinabrahms/deskchess/internal/config"
	"github.com/justinabrahms/deskchess/internal/snapshot"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Logger = zerolog.Nop()
	os.Exit(m.Run())
}

type testEnv struct {
	svc     *Service
	handler http.Handler
	store   *snapshot.FileStore
	hub     *Hub
}

func newTestEnv(t *testing.T, configure ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Defaults()
	cfg.Game.ComputerDelay = 0
	for _, fn := range configure {
		fn(cfg)
	}

	engine := chess.NewEngine(
		chess.WithLogger(zerolog.Nop()),
		chess.WithPolicy(computer.FirstPolicy{}),
		chess.WithTimeControl(chess.TimeControl{Initial: cfg.Game.InitialSeconds}),
	)
	store := snapshot.NewFileStore(filepath.Join(t.TempDir(), "game.car"))

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	svc := NewService(engine, store, hub, cfg)
	t.Cleanup(svc.Close)
	svc.Start()

	return &testEnv{svc: svc, handler: svc.Router(), store: store, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) game(t *testing.T) GameView {
	t.Helper()
	rr := e.do(t, "GET", "/api/game", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var view GameView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	return view
}

func (e *testEnv) move(t *testing.T, from, to string) moveResponse {
	t.Helper()
	rr := e.do(t, "POST", "/api/game/moves", MakeMoveRequest{From: from, To: to})
	require.Equal(t, http.StatusOK, rr.Code, "move %s-%s: %s", from, to, rr.Body.String())
	var resp moveResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

// subscribe registers an in-process client and returns its message channel.
func (e *testEnv) subscribe(t *testing.T) <-chan []byte {
	t.Helper()
	c := &Client{hub: e.hub, send: make(chan []byte, 256)}
	e.hub.register <- c
	return c.send
}

type rawUpdate struct {
	GameID string          `json:"gameId"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
}

// collect reads updates until stop returns true or the deadline passes.
func collect(t *testing.T, ch <-chan []byte, stop func(rawUpdate) bool) []rawUpdate {
	t.Helper()
	var got []rawUpdate
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg := <-ch:
			var u rawUpdate
			require.NoError(t, json.Unmarshal(msg, &u))
			got = append(got, u)
			if stop(u) {
				return got
			}
		case <-timeout:
			t.Fatalf("timed out waiting for update, got %d updates", len(got))
			return nil
		}
	}
}

func stateWithPlies(n int) func(rawUpdate) bool {
	return func(u rawUpdate) bool {
		if u.Type != UpdateState {
			return false
		}
		var view GameView
		if err := json.Unmarshal(u.Data, &view); err != nil {
			return false
		}
		return len(view.History) == n
	}
}

func countType(updates []rawUpdate, typ string) int {
	n := 0
	for _, u := range updates {
		if u.Type == typ {
			n++
		}
	}
	return n
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/api/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}

func TestGetGameHandler(t *testing.T) {
	env := newTestEnv(t)
	view := env.game(t)

	assert.NotEmpty(t, view.GameID)
	assert.Equal(t, chess.White, view.Turn)
	assert.Equal(t, chess.StatusActive, view.Status)
	assert.Equal(t, "white_running", view.Clock.Label)
	assert.Equal(t, "10:00", view.Clock.WhiteDisplay)
	assert.Equal(t, 600, view.Clock.Black)
	assert.Equal(t, chess.MaterialCount{White: 39, Black: 39}, view.Material)
	assert.Empty(t, view.History)
	assert.Equal(t, chess.Black, view.ComputerColor)

	require.NotNil(t, view.Board[7][4])
	assert.Equal(t, chess.King, view.Board[7][4].Kind)
	assert.Equal(t, chess.White, view.Board[7][4].Color)
	assert.Equal(t, "♔", view.Board[7][4].Symbol)
	assert.Nil(t, view.Board[4][4])
}

func TestMakeMoveHandler(t *testing.T) {
	env := newTestEnv(t)

	resp := env.move(t, "e2", "e4")
	assert.Equal(t, "e2", resp.Result.From)
	assert.Equal(t, "e4", resp.Result.To)
	assert.Equal(t, chess.SoundMove, resp.Result.Sound)
	assert.Equal(t, chess.Black, resp.State.Turn)
	assert.Len(t, resp.State.History, 1)
	assert.Equal(t, "black_running", resp.State.Clock.Label)

	tests := []struct {
		name string
		body interface{}
		code int
	}{
		{"pawn three squares", MakeMoveRequest{From: "d7", To: "d4"}, http.StatusBadRequest},
		{"wrong side", MakeMoveRequest{From: "d2", To: "d4"}, http.StatusBadRequest},
		{"empty origin", MakeMoveRequest{From: "e5", To: "e4"}, http.StatusBadRequest},
		{"off board", MakeMoveRequest{From: "z9", To: "e4"}, http.StatusBadRequest},
		{"missing fields", map[string]string{}, http.StatusBadRequest},
		{"not json", "nope", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "POST", "/api/game/moves", tt.body)
			assert.Equal(t, tt.code, rr.Code)
		})
	}

	view := env.game(t)
	assert.Len(t, view.History, 1, "rejected moves must not change the game")
	assert.Equal(t, chess.Black, view.Turn)
}

func TestCaptureAndCheckResults(t *testing.T) {
	env := newTestEnv(t)

	env.move(t, "e2", "e4")
	env.move(t, "f7", "f5")
	resp := env.move(t, "e4", "f5")
	assert.Equal(t, chess.SoundCapture, resp.Result.Sound)
	assert.Equal(t, 1, resp.Result.Points)
	assert.Equal(t, 1, resp.State.Score.White)
	require.Len(t, resp.State.Captured, 1)
	assert.Equal(t, chess.Pawn, resp.State.Captured[0].Kind)

	env.move(t, "a7", "a6")
	resp = env.move(t, "d1", "h5")
	assert.Equal(t, chess.SoundCheck, resp.Result.Sound)
	assert.True(t, resp.State.Check)
}

func TestSelectHandler(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/game/select?square=g1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp selectResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "g1", resp.Selected)
	assert.ElementsMatch(t, []string{"f3", "h3"}, resp.Destinations)

	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/game/select?square=e7", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/game/select?square=e4", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/game/select", nil).Code)
}

func TestUndoHandler(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusConflict, env.do(t, "POST", "/api/game/undo", nil).Code)

	env.move(t, "e2", "e4")
	rr := env.do(t, "POST", "/api/game/undo", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp undoResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "e2", resp.Undone.From)
	assert.Equal(t, "e4", resp.Undone.To)
	assert.Nil(t, resp.Undone.Captured)
	assert.Equal(t, chess.White, resp.State.Turn)
	assert.Empty(t, resp.State.History)
	require.NotNil(t, resp.State.Board[6][4])
	assert.Equal(t, chess.Pawn, resp.State.Board[6][4].Kind)
}

func TestNewGameHandler(t *testing.T) {
	env := newTestEnv(t)
	before := env.game(t).GameID
	env.move(t, "e2", "e4")

	rr := env.do(t, "POST", "/api/game/new", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	view := env.game(t)
	assert.NotEqual(t, before, view.GameID)
	assert.Empty(t, view.History)
	assert.Equal(t, chess.White, view.Turn)
	assert.Equal(t, 600, view.Clock.White)
}

func TestSaveAndLoad(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusNotFound, env.do(t, "POST", "/api/game/load", nil).Code)

	env.move(t, "e2", "e4")
	env.move(t, "d7", "d5")
	env.move(t, "e4", "d5")
	saved := env.game(t)

	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/game/save", nil).Code)

	env.do(t, "POST", "/api/game/new", nil)
	require.Empty(t, env.game(t).History)

	rr := env.do(t, "POST", "/api/game/load", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	loaded := env.game(t)
	assert.NotEqual(t, saved.GameID, loaded.GameID)
	assert.Equal(t, saved.Board, loaded.Board)
	assert.Equal(t, saved.History, loaded.History)
	assert.Equal(t, saved.FEN, loaded.FEN)
	assert.Equal(t, chess.Black, loaded.Turn)
	assert.Equal(t, 1, loaded.Score.White)
	assert.Equal(t, "black_running", loaded.Clock.Label)
}

func TestLoadCorruptSaveKeepsGame(t *testing.T) {
	env := newTestEnv(t)
	env.move(t, "e2", "e4")
	before := env.game(t)

	require.NoError(t, os.WriteFile(env.store.Path(), []byte("not a save"), 0o644))

	rr := env.do(t, "POST", "/api/game/load", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	after := env.game(t)
	assert.Equal(t, before.GameID, after.GameID)
	assert.Equal(t, before.History, after.History)
}

func TestLoadWithNoTimeLeftForfeits(t *testing.T) {
	env := newTestEnv(t)

	state := env.svc.engine.Snapshot()
	state.WhiteSeconds, state.BlackSeconds = 0, 300
	require.NoError(t, snapshot.Save(context.Background(), env.store, state))

	updates := env.subscribe(t)
	rr := env.do(t, "POST", "/api/game/load", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	got := collect(t, updates, func(u rawUpdate) bool { return u.Type == UpdateForfeit })
	var forfeit forfeitView
	require.NoError(t, json.Unmarshal(got[len(got)-1].Data, &forfeit))
	assert.Equal(t, chess.Black, forfeit.Winner)
	assert.Equal(t, chess.White, forfeit.Loser)
	assert.Equal(t, chess.StatusBlackWon, forfeit.Status)

	view := env.game(t)
	assert.Equal(t, chess.StatusBlackWon, view.Status)
	assert.Equal(t, "expired", view.Clock.Label)
	assert.Equal(t, http.StatusConflict, env.do(t, "POST", "/api/game/moves", MakeMoveRequest{From: "e2", To: "e4"}).Code)
	assert.Equal(t, http.StatusConflict, env.do(t, "GET", "/api/game/select?square=e2", nil).Code)
}

func TestComputerPlaysBlack(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/settings/computer", toggleRequest{Enabled: true})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, env.game(t).Settings.VsComputer)

	env.move(t, "e2", "e4")

	require.Eventually(t, func() bool {
		view := env.game(t)
		return len(view.History) == 2 && view.Turn == chess.White
	}, 2*time.Second, 10*time.Millisecond)

	view := env.game(t)
	assert.Equal(t, chess.Black, view.History[1].Piece.Color)
}

func TestHumanCannotMoveForComputer(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Game.ComputerDelay = time.Hour })

	env.do(t, "POST", "/api/settings/computer", toggleRequest{Enabled: true})
	env.move(t, "e2", "e4")

	view := env.game(t)
	assert.True(t, view.ComputerToMove)

	rr := env.do(t, "POST", "/api/game/moves", MakeMoveRequest{From: "d7", To: "d5"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/game/select?square=d7", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/game/undo", nil).Code)
	assert.Len(t, env.game(t).History, 1)
}

func TestNewGameDropsPendingComputerMove(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Game.ComputerDelay = 50 * time.Millisecond })

	env.do(t, "POST", "/api/settings/computer", toggleRequest{Enabled: true})
	env.move(t, "e2", "e4")
	env.do(t, "POST", "/api/game/new", nil)

	time.Sleep(150 * time.Millisecond)
	view := env.game(t)
	assert.Empty(t, view.History)
	assert.Equal(t, chess.White, view.Turn)
}

func TestStaleComputerMoveIsDropped(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Game.ComputerDelay = time.Hour })

	env.do(t, "POST", "/api/settings/computer", toggleRequest{Enabled: true})
	env.move(t, "e2", "e4")
	staleID := env.game(t).GameID
	env.do(t, "POST", "/api/game/new", nil)
	env.move(t, "d2", "d4")

	// A timer that fired just before the reset reaches the engine late.
	env.svc.playComputer(staleID)

	view := env.game(t)
	require.Len(t, view.History, 1)
	assert.Equal(t, "d2", view.History[0].From)
	assert.Equal(t, chess.Black, view.Turn)
}

func TestSettingsHandlers(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/settings/difficulty", difficultyRequest{Level: 2})
	require.Equal(t, http.StatusOK, rr.Code)
	var settings chess.Settings
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &settings))
	assert.Equal(t, 2, settings.Difficulty)

	assert.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/settings/difficulty", difficultyRequest{Level: 0}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/settings/difficulty", difficultyRequest{Level: 4}).Code)

	rr = env.do(t, "POST", "/api/settings/sound", toggleRequest{Enabled: false})
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &settings))
	assert.False(t, settings.Sound)
	assert.Equal(t, 2, settings.Difficulty)
}

func TestSoundUpdatesRespectSetting(t *testing.T) {
	env := newTestEnv(t)
	updates := env.subscribe(t)

	env.move(t, "e2", "e4")
	got := collect(t, updates, stateWithPlies(1))
	assert.Equal(t, 1, countType(got, UpdateSound))

	var sound soundView
	for _, u := range got {
		if u.Type == UpdateSound {
			require.NoError(t, json.Unmarshal(u.Data, &sound))
		}
	}
	assert.Equal(t, chess.SoundMove, sound.Sound)

	env.do(t, "POST", "/api/settings/sound", toggleRequest{Enabled: false})
	env.move(t, "d7", "d5")
	got = collect(t, updates, stateWithPlies(2))
	assert.Zero(t, countType(got, UpdateSound), "sound is muted")
}

func TestClockTicksAndForfeit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Game.InitialSeconds = 2 })
	updates := env.subscribe(t)

	env.svc.tick()
	got := collect(t, updates, func(u rawUpdate) bool { return u.Type == UpdateClock })
	var clock ClockView
	require.NoError(t, json.Unmarshal(got[len(got)-1].Data, &clock))
	assert.Equal(t, 1, clock.White)
	assert.Equal(t, 2, clock.Black)
	assert.Equal(t, "00:01", clock.WhiteDisplay)

	env.svc.tick()
	got = collect(t, updates, func(u rawUpdate) bool { return u.Type == UpdateForfeit })
	var forfeit forfeitView
	require.NoError(t, json.Unmarshal(got[len(got)-1].Data, &forfeit))
	assert.Equal(t, chess.Black, forfeit.Winner)
	assert.Equal(t, chess.White, forfeit.Loser)
	assert.Equal(t, chess.StatusBlackWon, forfeit.Status)

	view := env.game(t)
	assert.Equal(t, chess.StatusBlackWon, view.Status)
	assert.Equal(t, 0, view.Clock.White)
	assert.Equal(t, 2, view.Clock.Black)

	rr := env.do(t, "POST", "/api/game/moves", MakeMoveRequest{From: "e2", To: "e4"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	env.svc.tick()
	assert.Equal(t, 2, env.game(t).Clock.Black, "both clocks stop after a forfeit")
}

func TestRunClockStopsWithContext(t *testing.T) {
	env := newTestEnv(t)
	env.svc.tickInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		env.svc.RunClock(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return env.game(t).Clock.White < 600
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunClock did not return after cancel")
	}
}

func TestCORSHeadersAlwaysPresentOnPreflightRequests(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("OPTIONS", "/api/game/moves", nil)
	req.Header.Set("Origin", "http://localhost:8081")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestStatusForErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{chess.ErrInvalidSquare, http.StatusBadRequest},
		{chess.ErrIllegalMove, http.StatusBadRequest},
		{chess.ErrEmptyHistory, http.StatusConflict},
		{chess.ErrTimeExpired, http.StatusConflict},
		{snapshot.ErrNoSnapshot, http.StatusNotFound},
		{snapshot.ErrDeserialization, http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, statusFor(tt.err), tt.err.Error())
	}
}
