package chess

import "fmt"

// BoardSize is the number of rows and columns on the board.
const BoardSize = 8

// Square addresses one board slot. Row 0 is Black's back rank, row 7 is White's.
type Square struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Sq is shorthand for Square{row, col}.
func Sq(row, col int) Square {
	return Square{Row: row, Col: col}
}

// Valid reports whether s lies on the board.
func (s Square) Valid() bool {
	return s.Row >= 0 && s.Row < BoardSize && s.Col >= 0 && s.Col < BoardSize
}

func (s Square) String() string {
	if !s.Valid() {
		return fmt.Sprintf("(%d,%d)", s.Row, s.Col)
	}
	return algebraic(s)
}

func mustValid(s Square) {
	if !s.Valid() {
		panic(fmt.Errorf("%w: %d,%d", ErrInvalidSquare, s.Row, s.Col))
	}
}

// Board owns all piece placement for one game.
type Board struct {
	grid [BoardSize][BoardSize]Piece
}

// NewBoard returns a board in the standard starting layout.
func NewBoard() *Board {
	b := &Board{}
	b.Reset()
	return b
}

// NewEmptyBoard returns a board with no pieces.
func NewEmptyBoard() *Board {
	return &Board{}
}

var backRank = [BoardSize]Kind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// Reset restores the standard starting layout.
func (b *Board) Reset() {
	b.grid = [BoardSize][BoardSize]Piece{}
	for col := 0; col < BoardSize; col++ {
		b.grid[0][col] = NewPiece(backRank[col], Black)
		b.grid[1][col] = NewPiece(Pawn, Black)
		b.grid[6][col] = NewPiece(Pawn, White)
		b.grid[7][col] = NewPiece(backRank[col], White)
	}
}

// Get returns the piece on s and whether the slot is occupied.
// Panics if s is off the board.
func (b *Board) Get(s Square) (Piece, bool) {
	mustValid(s)
	p := b.grid[s.Row][s.Col]
	return p, !p.IsZero()
}

// Place puts p on s, replacing whatever was there.
func (b *Board) Place(s Square, p Piece) {
	mustValid(s)
	b.grid[s.Row][s.Col] = p
}

// Remove clears s and returns its previous occupant (NoPiece if empty).
func (b *Board) Remove(s Square) Piece {
	mustValid(s)
	p := b.grid[s.Row][s.Col]
	b.grid[s.Row][s.Col] = NoPiece
	return p
}

// FindKing returns the square of the king of color c.
func (b *Board) FindKing(c Color) (Square, bool) {
	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			p := b.grid[row][col]
			if p.Kind == King && p.Color == c {
				return Sq(row, col), true
			}
		}
	}
	return Square{}, false
}

// Layout returns a copy of the grid for renderers and snapshots.
func (b *Board) Layout() [BoardSize][BoardSize]Piece {
	return b.grid
}

// SetLayout replaces the grid wholesale.
func (b *Board) SetLayout(grid [BoardSize][BoardSize]Piece) {
	b.grid = grid
}

// Clone returns an independent copy of b.
func (b *Board) Clone() *Board {
	c := *b
	return &c
}

// Count returns the number of occupied slots.
func (b *Board) Count() int {
	n := 0
	for row := range b.grid {
		for col := range b.grid[row] {
			if !b.grid[row][col].IsZero() {
				n++
			}
		}
	}
	return n
}

// Equal reports whether two boards hold identical placements.
func (b *Board) Equal(o *Board) bool {
	return b.grid == o.grid
}
