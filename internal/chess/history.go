package chess

// Move is a self-contained, reversible record of one applied move.
type Move struct {
	From     Square `json:"from"`
	To       Square `json:"to"`
	Moved    Piece  `json:"moved"`
	Captured Piece  `json:"captured"` // NoPiece when the move did not capture
}

// IsCapture reports whether the move took a piece.
func (m Move) IsCapture() bool {
	return !m.Captured.IsZero()
}

// History is the stack of applied moves for one game.
type History struct {
	moves []Move
}

// NewHistory returns a history preloaded with moves, oldest first.
func NewHistory(moves ...Move) *History {
	h := &History{}
	h.moves = append(h.moves, moves...)
	return h
}

func (h *History) Push(m Move) {
	h.moves = append(h.moves, m)
}

// Pop removes and returns the most recent move.
func (h *History) Pop() (Move, bool) {
	if len(h.moves) == 0 {
		return Move{}, false
	}
	m := h.moves[len(h.moves)-1]
	h.moves = h.moves[:len(h.moves)-1]
	return m, true
}

// Last returns the most recent move without removing it.
func (h *History) Last() (Move, bool) {
	if len(h.moves) == 0 {
		return Move{}, false
	}
	return h.moves[len(h.moves)-1], true
}

func (h *History) Len() int {
	return len(h.moves)
}

// Moves returns a copy of the recorded moves, oldest first.
func (h *History) Moves() []Move {
	out := make([]Move, len(h.moves))
	copy(out, h.moves)
	return out
}

func (h *History) Clear() {
	h.moves = nil
}

// ApplyMove relocates the piece on from to to, records the move on h and
// returns the record. The caller must have checked IsLegal.
func ApplyMove(b *Board, h *History, from, to Square) Move {
	moved, _ := b.Get(from)
	captured := b.Remove(to)
	b.Remove(from)
	b.Place(to, moved)

	m := Move{From: from, To: to, Moved: moved, Captured: captured}
	h.Push(m)
	return m
}

// Undo pops the most recent move and restores both squares it touched.
func Undo(b *Board, h *History) (Move, bool) {
	m, ok := h.Pop()
	if !ok {
		return Move{}, false
	}
	b.Place(m.From, m.Moved)
	b.Place(m.To, m.Captured)
	return m, true
}
