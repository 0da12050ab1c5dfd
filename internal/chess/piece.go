package chess

import "fmt"

// Color is the side a piece belongs to.
type Color uint8

const (
	White Color = iota
	Black
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseColor accepts "white" or "black".
func ParseColor(s string) (Color, error) {
	switch s {
	case "white":
		return White, nil
	case "black":
		return Black, nil
	default:
		return White, fmt.Errorf("unknown color %q", s)
	}
}

// Kind identifies what a piece is. The zero value means "no piece".
type Kind uint8

const (
	NoKind Kind = iota
	Pawn
	Rook
	Knight
	Bishop
	Queen
	King
)

var kindNames = [...]string{
	NoKind: "",
	Pawn:   "pawn",
	Rook:   "rook",
	Knight: "knight",
	Bishop: "bishop",
	Queen:  "queen",
	King:   "king",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Valid reports whether k names a real piece kind.
func (k Kind) Valid() bool {
	return k >= Pawn && k <= King
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*k = NoKind
		return nil
	}
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := Pawn; k <= King; k++ {
		if kindNames[k] == s {
			return k, nil
		}
	}
	return NoKind, fmt.Errorf("unknown piece kind %q", s)
}

// Piece is an immutable chess unit. The zero Piece is an empty slot.
type Piece struct {
	Kind  Kind  `json:"kind"`
	Color Color `json:"color"`
}

// NoPiece is the empty slot.
var NoPiece = Piece{}

// NewPiece builds a piece of the given kind and color.
func NewPiece(k Kind, c Color) Piece {
	return Piece{Kind: k, Color: c}
}

// IsZero reports whether p is an empty slot.
func (p Piece) IsZero() bool {
	return p.Kind == NoKind
}

func (p Piece) String() string {
	if p.IsZero() {
		return "empty"
	}
	return p.Color.String() + " " + p.Kind.String()
}

// Symbol returns the Unicode glyph used by board renderers.
func (p Piece) Symbol() string {
	white := p.Color == White
	switch p.Kind {
	case King:
		return pick(white, "♔", "♚")
	case Queen:
		return pick(white, "♕", "♛")
	case Rook:
		return pick(white, "♖", "♜")
	case Bishop:
		return pick(white, "♗", "♝")
	case Knight:
		return pick(white, "♘", "♞")
	case Pawn:
		return pick(white, "♙", "♟")
	default:
		return ""
	}
}

func pick(white bool, w, b string) string {
	if white {
		return w
	}
	return b
}

// StandardPieceValues maps piece kinds to the points awarded for capturing them.
var StandardPieceValues = map[Kind]int{
	Pawn:   1,
	Knight: 3,
	Bishop: 3,
	Rook:   5,
	Queen:  9,
	King:   0, // King is never captured under legal play
}

// Value returns the capture value of p.
func (p Piece) Value() int {
	return StandardPieceValues[p.Kind]
}
