package web

import (
	"github.com/justinabrahms/deskchess/internal/chess"
)

// PieceView is a piece as renderers see it.
type PieceView struct {
	Kind   chess.Kind  `json:"kind"`
	Color  chess.Color `json:"color"`
	Symbol string      `json:"symbol"`
}

type MoveView struct {
	From     string     `json:"from"`
	To       string     `json:"to"`
	Piece    PieceView  `json:"piece"`
	Captured *PieceView `json:"captured,omitempty"`
}

type ClockView struct {
	chess.ClockView
	WhiteDisplay string `json:"whiteDisplay"`
	BlackDisplay string `json:"blackDisplay"`
}

// GameView is the full game state pushed to renderers. Board rows run from
// Black's back rank (row 0) to White's (row 7); empty squares are null.
type GameView struct {
	GameID         string                                       `json:"gameId"`
	Board          [chess.BoardSize][chess.BoardSize]*PieceView `json:"board"`
	Turn           chess.Color                                  `json:"turn"`
	Check          bool                                         `json:"check"`
	Status         chess.GameStatus                             `json:"status"`
	Clock          ClockView                                    `json:"clock"`
	Score          chess.MaterialCount                          `json:"score"`
	Material       chess.MaterialCount                          `json:"material"`
	Captured       []PieceView                                  `json:"captured"`
	History        []MoveView                                   `json:"history"`
	FEN            string                                       `json:"fen"`
	Settings       chess.Settings                               `json:"settings"`
	ComputerColor  chess.Color                                  `json:"computerColor"`
	ComputerToMove bool                                         `json:"computerToMove"`
}

type selectResponse struct {
	Selected     string   `json:"selected"`
	Destinations []string `json:"destinations"`
}

type moveResponse struct {
	Result *chess.MoveResult `json:"result"`
	State  GameView          `json:"state"`
}

type undoResponse struct {
	Undone MoveView `json:"undone"`
	State  GameView `json:"state"`
}

type soundView struct {
	Sound chess.Sound `json:"sound"`
}

type forfeitView struct {
	Winner chess.Color      `json:"winner"`
	Loser  chess.Color      `json:"loser"`
	Status chess.GameStatus `json:"status"`
}

func newPieceView(p chess.Piece) PieceView {
	return PieceView{Kind: p.Kind, Color: p.Color, Symbol: p.Symbol()}
}

func newMoveView(m chess.Move) MoveView {
	v := MoveView{
		From:  m.From.String(),
		To:    m.To.String(),
		Piece: newPieceView(m.Moved),
	}
	if m.IsCapture() {
		c := newPieceView(m.Captured)
		v.Captured = &c
	}
	return v
}

func newClockView(c chess.ClockView) ClockView {
	return ClockView{
		ClockView:    c,
		WhiteDisplay: chess.FormatTimeRemaining(c.White),
		BlackDisplay: chess.FormatTimeRemaining(c.Black),
	}
}

// view snapshots the engine for rendering. Caller holds mu.
func (s *Service) view() GameView {
	e := s.engine
	v := GameView{
		GameID:         e.ID(),
		Turn:           e.Turn(),
		Check:          e.InCheck(),
		Status:         e.GetStatus(),
		Clock:          newClockView(e.Clock()),
		Score:          e.Score(),
		Material:       e.GetMaterialCount(),
		Captured:       []PieceView{},
		History:        []MoveView{},
		FEN:            e.GetFEN(),
		Settings:       e.Settings(),
		ComputerColor:  e.ComputerColor(),
		ComputerToMove: e.ComputerToMove(),
	}

	grid := e.Board().Layout()
	for row := range grid {
		for col, p := range grid[row] {
			if p.IsZero() {
				continue
			}
			pv := newPieceView(p)
			v.Board[row][col] = &pv
		}
	}
	for _, p := range e.Captured() {
		v.Captured = append(v.Captured, newPieceView(p))
	}
	for _, m := range e.History() {
		v.History = append(v.History, newMoveView(m))
	}
	return v
}
