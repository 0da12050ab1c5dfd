package chess

type GameStatus string

const (
	StatusActive   GameStatus = "active"
	StatusWhiteWon GameStatus = "white_won"
	StatusBlackWon GameStatus = "black_won"
)

// Sound is the notification raised for audio collaborators after a move.
type Sound string

const (
	SoundMove    Sound = "move"
	SoundCapture Sound = "capture"
	SoundCheck   Sound = "check"
)

type MoveResult struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Piece    Piece  `json:"piece"`
	Captured *Piece `json:"captured,omitempty"` // nil unless the move took a piece
	Points   int    `json:"points"`
	Check    bool   `json:"check"`
	Sound    Sound  `json:"sound"`
	FEN      string `json:"fen"`
	Turn     Color  `json:"turn"`
}

// Highlights is what a renderer needs after a square is selected.
type Highlights struct {
	Selected     Square   `json:"selected"`
	Destinations []Square `json:"destinations"`
}

// GameState is the persisted form of a game. It has no behavior; see the
// snapshot package for its encoding.
type GameState struct {
	Board        [BoardSize][BoardSize]Piece
	History      []Move
	Turn         Color
	WhiteSeconds int
	BlackSeconds int
}

// Equal reports whether two snapshots are identical field by field.
func (s GameState) Equal(o GameState) bool {
	if s.Board != o.Board || s.Turn != o.Turn ||
		s.WhiteSeconds != o.WhiteSeconds || s.BlackSeconds != o.BlackSeconds ||
		len(s.History) != len(o.History) {
		return false
	}
	for i := range s.History {
		if s.History[i] != o.History[i] {
			return false
		}
	}
	return true
}
