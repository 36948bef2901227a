// Package grid lays text out on a fixed cell grid for the desktop console.
package grid

// GetGridCoords converts a linear cell index into a column and row on a grid
// that is cols cells wide.
func GetGridCoords(index, cols int) (x, y int) {
	return index % cols, index / cols
}

// Screen is a cols by rows text buffer. Writing past the last row scrolls
// the contents up by one row. A zero cell is blank.
type Screen struct {
	Cols  int
	Rows  int
	Cells []rune

	// x may equal Cols, meaning the next rune wraps to a new row.
	x, y int
}

func NewScreen(cols, rows int) *Screen {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return &Screen{Cols: cols, Rows: rows, Cells: make([]rune, cols*rows)}
}

// Cursor returns the cell where the next rune will be drawn.
func (s *Screen) Cursor() (x, y int) {
	if s.x == s.Cols {
		if s.y == s.Rows-1 {
			return s.Cols - 1, s.y
		}
		return 0, s.y + 1
	}
	return s.x, s.y
}

// WriteString writes text at the cursor. '\n' starts a new row and '\b'
// erases the previous cell.
func (s *Screen) WriteString(text string) {
	for _, r := range text {
		switch r {
		case '\n':
			s.x = 0
			s.advanceRow()
		case '\b':
			s.Backspace()
		case '\r':
			s.x = 0
		default:
			s.put(r)
		}
	}
}

// Backspace erases the cell before the cursor, moving to the end of the
// previous row when the cursor is at the start of one.
func (s *Screen) Backspace() {
	if s.x == 0 {
		if s.y == 0 {
			return
		}
		s.y--
		s.x = s.Cols
	}
	s.x--
	s.Cells[s.y*s.Cols+s.x] = 0
}

func (s *Screen) Clear() {
	clear(s.Cells)
	s.x, s.y = 0, 0
}

// Line returns row y with trailing blanks removed.
func (s *Screen) Line(y int) string {
	if y < 0 || y >= s.Rows {
		return ""
	}
	row := s.Cells[y*s.Cols : (y+1)*s.Cols]
	end := len(row)
	for end > 0 && row[end-1] == 0 {
		end--
	}
	out := make([]rune, end)
	for i, r := range row[:end] {
		if r == 0 {
			r = ' '
		}
		out[i] = r
	}
	return string(out)
}

func (s *Screen) put(r rune) {
	if s.x == s.Cols {
		s.x = 0
		s.advanceRow()
	}
	s.Cells[s.y*s.Cols+s.x] = r
	s.x++
}

func (s *Screen) advanceRow() {
	s.y++
	if s.y < s.Rows {
		return
	}
	copy(s.Cells, s.Cells[s.Cols:])
	clear(s.Cells[len(s.Cells)-s.Cols:])
	s.y = s.Rows - 1
}
