package chess

// Candidate is a (from, to) pair offered to a move policy.
type Candidate struct {
	From Square `json:"from"`
	To   Square `json:"to"`
}

// IsLegal reports whether the piece on from may move to to on b.
//
// Moves that leave the mover's own king attacked are not rejected; there is
// no pin, castling, en passant or promotion handling.
func IsLegal(b *Board, from, to Square) bool {
	piece, ok := b.Get(from)
	if !ok {
		return false
	}
	if target, occupied := b.Get(to); occupied && target.Color == piece.Color {
		return false
	}
	return shapeLegal(b, piece, from, to) && pathClear(b, piece, from, to)
}

// shapeLegal checks the geometric movement pattern of piece, plus the
// occupancy conditions pawns depend on.
func shapeLegal(b *Board, piece Piece, from, to Square) bool {
	dr, dc := to.Row-from.Row, to.Col-from.Col
	switch piece.Kind {
	case Pawn:
		return pawnShape(b, piece.Color, from, to)
	case Rook:
		return rookShape(dr, dc)
	case Knight:
		return knightShape(dr, dc)
	case Bishop:
		return bishopShape(dr, dc)
	case Queen:
		return rookShape(dr, dc) || bishopShape(dr, dc)
	case King:
		return abs(dr) <= 1 && abs(dc) <= 1
	default:
		return false
	}
}

func pawnShape(b *Board, c Color, from, to Square) bool {
	dir, startRow := -1, 6
	if c == Black {
		dir, startRow = 1, 1
	}

	_, targetOccupied := b.Get(to)

	if from.Col == to.Col && to.Row == from.Row+dir && !targetOccupied {
		return true
	}

	if from.Row == startRow && from.Col == to.Col && to.Row == from.Row+2*dir && !targetOccupied {
		_, between := b.Get(Sq(from.Row+dir, from.Col))
		return !between
	}

	if abs(from.Col-to.Col) == 1 && to.Row == from.Row+dir {
		target, ok := b.Get(to)
		return ok && target.Color != c
	}

	return false
}

func rookShape(dr, dc int) bool {
	return dr == 0 || dc == 0
}

func bishopShape(dr, dc int) bool {
	return abs(dr) == abs(dc)
}

func knightShape(dr, dc int) bool {
	ar, ac := abs(dr), abs(dc)
	return (ar == 2 && ac == 1) || (ar == 1 && ac == 2)
}

// pathClear reports whether every square strictly between from and to is
// empty. Knights jump and are always clear.
func pathClear(b *Board, piece Piece, from, to Square) bool {
	if piece.Kind == Knight {
		return true
	}

	rowStep, colStep := sign(to.Row-from.Row), sign(to.Col-from.Col)
	cur := Sq(from.Row+rowStep, from.Col+colStep)
	for cur != to {
		if _, occupied := b.Get(cur); occupied {
			return false
		}
		cur = Sq(cur.Row+rowStep, cur.Col+colStep)
	}
	return true
}

// IsInCheck reports whether the king of color c can be reached by any
// opposing piece. A missing king is never in check.
func IsInCheck(b *Board, c Color) bool {
	king, ok := b.FindKing(c)
	if !ok {
		return false
	}

	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			from := Sq(row, col)
			p, occupied := b.Get(from)
			if !occupied || p.Color == c {
				continue
			}
			if IsLegal(b, from, king) {
				return true
			}
		}
	}
	return false
}

// LegalDestinations lists every square the piece on from may move to.
func LegalDestinations(b *Board, from Square) []Square {
	var dests []Square
	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			to := Sq(row, col)
			if IsLegal(b, from, to) {
				dests = append(dests, to)
			}
		}
	}
	return dests
}

// LegalMoves enumerates every legal (from, to) pair for the pieces of color c.
func LegalMoves(b *Board, c Color) []Candidate {
	var moves []Candidate
	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			from := Sq(row, col)
			p, ok := b.Get(from)
			if !ok || p.Color != c {
				continue
			}
			for _, to := range LegalDestinations(b, from) {
				moves = append(moves, Candidate{From: from, To: to})
			}
		}
	}
	return moves
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
