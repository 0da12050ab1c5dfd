package chess

// MaterialCount represents a per-side point total.
type MaterialCount struct {
	White int `json:"white"`
	Black int `json:"black"`
}

// Scoreboard accumulates capture points per side.
type Scoreboard struct {
	points MaterialCount
}

// AddPoints credits value to side c. Negative values are ignored.
func (s *Scoreboard) AddPoints(c Color, value int) {
	if value <= 0 {
		return
	}
	if c == White {
		s.points.White += value
	} else {
		s.points.Black += value
	}
}

func (s *Scoreboard) Reset() {
	s.points = MaterialCount{}
}

// Points returns the current total for side c.
func (s *Scoreboard) Points(c Color) int {
	if c == White {
		return s.points.White
	}
	return s.points.Black
}

// Totals returns both sides' points.
func (s *Scoreboard) Totals() MaterialCount {
	return s.points
}

// Balance is White's points minus Black's.
func (s *Scoreboard) Balance() int {
	return s.points.White - s.points.Black
}

// Material sums the values of every piece still on b, per side.
func Material(b *Board) MaterialCount {
	var mc MaterialCount
	grid := b.Layout()
	for row := range grid {
		for _, p := range grid[row] {
			if p.IsZero() {
				continue
			}
			if p.Color == White {
				mc.White += p.Value()
			} else {
				mc.Black += p.Value()
			}
		}
	}
	return mc
}
