package chess

import (
	"fmt"
	"strings"

	nchess "github.com/notnil/chess"
)

var kindToNotnil = map[Kind]nchess.PieceType{
	Pawn:   nchess.Pawn,
	Rook:   nchess.Rook,
	Knight: nchess.Knight,
	Bishop: nchess.Bishop,
	Queen:  nchess.Queen,
	King:   nchess.King,
}

func toNotnilSquare(s Square) nchess.Square {
	return nchess.NewSquare(nchess.File(s.Col), nchess.Rank(BoardSize-1-s.Row))
}

func toNotnilColor(c Color) nchess.Color {
	if c == White {
		return nchess.White
	}
	return nchess.Black
}

func algebraic(s Square) string {
	return toNotnilSquare(s).String()
}

// ParseSquare converts algebraic notation such as "e2" to a Square.
func ParseSquare(sq string) (Square, error) {
	if len(sq) != 2 {
		return Square{}, fmt.Errorf("%w: %q", ErrInvalidSquare, sq)
	}

	file := int(sq[0]) - 'a'
	rank := int(sq[1]) - '1'

	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return Square{}, fmt.Errorf("%w: %q", ErrInvalidSquare, sq)
	}

	return Sq(BoardSize-1-rank, file), nil
}

func notnilBoard(b *Board) *nchess.Board {
	m := make(map[nchess.Square]nchess.Piece)
	grid := b.Layout()
	for row := range grid {
		for col, p := range grid[row] {
			if p.IsZero() {
				continue
			}
			m[toNotnilSquare(Sq(row, col))] = nchess.NewPiece(kindToNotnil[p.Kind], toNotnilColor(p.Color))
		}
	}
	return nchess.NewBoard(m)
}

// BoardFEN returns the piece-placement field of FEN for b.
func BoardFEN(b *Board) string {
	return notnilBoard(b).String()
}

// FEN renders a full FEN record. Castling and en passant are never available.
func FEN(b *Board, turn Color, plies int) string {
	side := "w"
	if turn == Black {
		side = "b"
	}
	return fmt.Sprintf("%s %s - - 0 %d", BoardFEN(b), side, plies/2+1)
}

// Draw renders b as text, White at the bottom.
func Draw(b *Board) string {
	return strings.TrimRight(notnilBoard(b).Draw(), "\n")
}
