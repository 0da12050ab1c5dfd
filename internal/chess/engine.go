package chess

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MovePolicy picks the computer's move from the full set of legal moves.
// It returns false when moves is empty.
type MovePolicy interface {
	SelectMove(ctx context.Context, moves []Candidate, difficulty int) (Candidate, bool)
}

// Settings are the user-facing toggles of a game session.
type Settings struct {
	VsComputer bool `json:"vsComputer"`
	Difficulty int  `json:"difficulty"`
	Sound      bool `json:"sound"`
}

// DefaultSettings matches a fresh install: two humans, easiest level, sound on.
func DefaultSettings() Settings {
	return Settings{Difficulty: 1, Sound: true}
}

// ClockView is a read-only picture of the clock for renderers.
type ClockView struct {
	White int        `json:"white"`
	Black int        `json:"black"`
	State ClockState `json:"-"`
	Label string     `json:"state"`
}

// Engine is one game session. It owns the board, history, clock and
// scoreboard and is not safe for concurrent use; hosts serialize access.
type Engine struct {
	id       string
	board    *Board
	history  *History
	turn     Color
	check    bool
	clock    *Clock
	score    Scoreboard
	captured []Piece
	status   GameStatus

	policy   MovePolicy
	computer Color
	settings Settings
	log      zerolog.Logger
}

type Option func(*Engine)

func WithPolicy(p MovePolicy) Option {
	return func(e *Engine) { e.policy = p }
}

func WithTimeControl(tc TimeControl) Option {
	return func(e *Engine) { e.clock = NewClock(tc) }
}

func WithSettings(s Settings) Option {
	return func(e *Engine) { e.settings = s }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an engine in the starting position with an idle clock.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		board:    NewBoard(),
		history:  NewHistory(),
		clock:    NewClock(DefaultTimeControl()),
		computer: Black,
		settings: DefaultSettings(),
		log:      log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.Reset()
	return e
}

// NewEngineFromState creates an engine and restores s into it.
func NewEngineFromState(s GameState, opts ...Option) *Engine {
	e := NewEngine(opts...)
	e.Restore(s)
	return e
}

// Reset starts a new game: standard layout, empty history, White to move,
// clocks and score back to zero. The clock is left idle.
func (e *Engine) Reset() {
	e.id = uuid.NewString()
	e.board.Reset()
	e.history.Clear()
	e.turn = White
	e.check = false
	e.clock.Reset()
	e.score.Reset()
	e.captured = nil
	e.status = StatusActive

	e.log.Info().Str("gameID", e.id).Msg("New game")
}

// Start starts White's clock.
func (e *Engine) Start() {
	e.clock.Start()
}

// NewGame resets and starts the clock.
func (e *Engine) NewGame() {
	e.Reset()
	e.Start()
}

// MakeMove validates and applies a move for the side to move.
func (e *Engine) MakeMove(from, to Square) (*MoveResult, error) {
	if !from.Valid() || !to.Valid() {
		return nil, fmt.Errorf("%w: %v to %v", ErrInvalidSquare, from, to)
	}
	if e.status != StatusActive {
		return nil, ErrTimeExpired
	}
	if e.ComputerToMove() {
		return nil, fmt.Errorf("%w: waiting for the computer", ErrIllegalMove)
	}

	piece, ok := e.board.Get(from)
	if !ok {
		return nil, fmt.Errorf("%w: no piece on %s", ErrIllegalMove, from)
	}
	if piece.Color != e.turn {
		return nil, fmt.Errorf("%w: it is %s's turn", ErrIllegalMove, e.turn)
	}
	if !IsLegal(e.board, from, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrIllegalMove, from, to)
	}

	return e.apply(from, to), nil
}

func (e *Engine) apply(from, to Square) *MoveResult {
	mover := e.turn
	m := ApplyMove(e.board, e.history, from, to)

	points := 0
	var captured *Piece
	if m.IsCapture() {
		captured = &m.Captured
		points = m.Captured.Value()
		e.score.AddPoints(mover, points)
		e.captured = append(e.captured, m.Captured)
	}

	e.turn = mover.Opponent()
	e.check = IsInCheck(e.board, e.turn)
	e.clock.Switch()

	sound := SoundMove
	switch {
	case e.check:
		sound = SoundCheck
	case m.IsCapture():
		sound = SoundCapture
	}

	e.log.Debug().
		Str("gameID", e.id).
		Str("piece", m.Moved.String()).
		Str("from", from.String()).
		Str("to", to.String()).
		Bool("capture", m.IsCapture()).
		Bool("check", e.check).
		Msg("Move applied")

	return &MoveResult{
		From:     from.String(),
		To:       to.String(),
		Piece:    m.Moved,
		Captured: captured,
		Points:   points,
		Check:    e.check,
		Sound:    sound,
		FEN:      e.GetFEN(),
		Turn:     e.turn,
	}
}

// Undo takes back the last move. Points already awarded are kept and the
// check flag is cleared without being recomputed.
func (e *Engine) Undo() (Move, error) {
	m, ok := Undo(e.board, e.history)
	if !ok {
		return Move{}, ErrEmptyHistory
	}

	if m.IsCapture() && len(e.captured) > 0 {
		e.captured = e.captured[:len(e.captured)-1]
	}
	e.turn = e.turn.Opponent()
	e.check = false
	e.clock.Switch()

	e.log.Debug().
		Str("gameID", e.id).
		Str("from", m.From.String()).
		Str("to", m.To.String()).
		Msg("Move undone")

	return m, nil
}

// Select returns the legal destinations of the piece on sq. Only pieces of
// the side to move can be selected.
func (e *Engine) Select(sq Square) (Highlights, error) {
	if !sq.Valid() {
		return Highlights{}, fmt.Errorf("%w: %v", ErrInvalidSquare, sq)
	}
	if e.status != StatusActive {
		return Highlights{}, ErrTimeExpired
	}
	if e.ComputerToMove() {
		return Highlights{}, fmt.Errorf("%w: waiting for the computer", ErrIllegalMove)
	}
	p, ok := e.board.Get(sq)
	if !ok || p.Color != e.turn {
		return Highlights{}, fmt.Errorf("%w: nothing to select on %s", ErrIllegalMove, sq)
	}
	return Highlights{Selected: sq, Destinations: LegalDestinations(e.board, sq)}, nil
}

// PlayComputer lets the move policy play for the computer side. gameID must
// be the ID the move was scheduled for; a reset or load in between makes the
// request stale.
func (e *Engine) PlayComputer(ctx context.Context, gameID string) (*MoveResult, error) {
	if gameID != e.id {
		return nil, ErrStaleGame
	}
	if e.status != StatusActive {
		return nil, ErrTimeExpired
	}
	if !e.ComputerToMove() {
		return nil, fmt.Errorf("%w: not the computer's turn", ErrIllegalMove)
	}
	if e.policy == nil {
		return nil, fmt.Errorf("no move policy configured")
	}

	moves := LegalMoves(e.board, e.turn)
	choice, ok := e.policy.SelectMove(ctx, moves, e.settings.Difficulty)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		e.log.Info().Str("gameID", e.id).Msg("Computer has no legal moves")
		return nil, ErrNoLegalMoves
	}
	if !IsLegal(e.board, choice.From, choice.To) {
		return nil, fmt.Errorf("%w: policy chose %s to %s", ErrIllegalMove, choice.From, choice.To)
	}

	return e.apply(choice.From, choice.To), nil
}

// ComputerToMove reports whether the computer side is on move.
func (e *Engine) ComputerToMove() bool {
	return e.settings.VsComputer && e.turn == e.computer
}

// Tick advances the running clock by one second. A non-nil Forfeit ends the game.
func (e *Engine) Tick() *Forfeit {
	return e.observe(e.clock.Tick())
}

// Advance ticks n seconds at once.
func (e *Engine) Advance(n int) *Forfeit {
	return e.observe(e.clock.Advance(n))
}

func (e *Engine) observe(f *Forfeit) *Forfeit {
	if f == nil {
		return nil
	}
	if f.Winner == White {
		e.status = StatusWhiteWon
	} else {
		e.status = StatusBlackWon
	}
	e.log.Info().
		Str("gameID", e.id).
		Str("loser", f.Loser.String()).
		Str("winner", f.Winner.String()).
		Msg("Time forfeit")
	return f
}

// Snapshot captures everything needed to resume the game later.
func (e *Engine) Snapshot() GameState {
	return GameState{
		Board:        e.board.Layout(),
		History:      e.history.Moves(),
		Turn:         e.turn,
		WhiteSeconds: e.clock.Remaining(White),
		BlackSeconds: e.clock.Remaining(Black),
	}
}

// Restore replaces the whole session with s. Captured pieces and score are
// rebuilt from the history and the side to move's clock resumes. A side to
// move with no time left loses at once and the Forfeit is returned.
func (e *Engine) Restore(s GameState) *Forfeit {
	e.id = uuid.NewString()
	e.board.SetLayout(s.Board)
	e.history = NewHistory(s.History...)
	e.turn = s.Turn
	e.check = false
	e.status = StatusActive

	e.score.Reset()
	e.captured = nil
	for _, m := range s.History {
		if m.IsCapture() {
			e.score.AddPoints(m.Moved.Color, m.Captured.Value())
			e.captured = append(e.captured, m.Captured)
		}
	}

	e.clock.Reset()
	e.clock.SetTimes(s.WhiteSeconds, s.BlackSeconds)
	f := e.observe(e.clock.Resume(e.turn))

	e.log.Info().
		Str("gameID", e.id).
		Int("plies", e.history.Len()).
		Str("turn", e.turn.String()).
		Msg("Game restored")
	return f
}

func (e *Engine) SetComputerMode(enabled bool) {
	e.settings.VsComputer = enabled
	e.NewGame()
}

func (e *Engine) SetDifficulty(level int) {
	e.settings.Difficulty = level
}

func (e *Engine) SetSound(enabled bool) {
	e.settings.Sound = enabled
}

func (e *Engine) Settings() Settings {
	return e.settings
}

// ID identifies the current game; it changes on every reset or restore.
func (e *Engine) ID() string {
	return e.id
}

func (e *Engine) Turn() Color {
	return e.turn
}

func (e *Engine) InCheck() bool {
	return e.check
}

// Board returns a copy of the current board.
func (e *Engine) Board() *Board {
	return e.board.Clone()
}

func (e *Engine) History() []Move {
	return e.history.Moves()
}

func (e *Engine) Score() MaterialCount {
	return e.score.Totals()
}

// Captured lists captured pieces in capture order.
func (e *Engine) Captured() []Piece {
	out := make([]Piece, len(e.captured))
	copy(out, e.captured)
	return out
}

func (e *Engine) Clock() ClockView {
	return ClockView{
		White: e.clock.Remaining(White),
		Black: e.clock.Remaining(Black),
		State: e.clock.State(),
		Label: e.clock.State().String(),
	}
}

func (e *Engine) ComputerColor() Color {
	return e.computer
}

func (e *Engine) GetFEN() string {
	return FEN(e.board, e.turn, e.history.Len())
}

func (e *Engine) GetStatus() GameStatus {
	return e.status
}

func (e *Engine) GetActiveColor() string {
	return e.turn.String()
}

// GetMaterialCount sums the value of the pieces still on the board.
func (e *Engine) GetMaterialCount() MaterialCount {
	return Material(e.board)
}

// GetMaterialBalance is White's material minus Black's.
func (e *Engine) GetMaterialBalance() int {
	mc := e.GetMaterialCount()
	return mc.White - mc.Black
}
