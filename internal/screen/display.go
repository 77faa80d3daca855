package screen

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Display is a drawable character surface. Draws accumulate in a buffer
// and become visible on Flush.
type Display interface {
	// Size returns the surface dimensions in character cells.
	Size() (width, height int)

	// Clear blanks the whole surface.
	Clear() error

	// DrawText writes text starting at cell (x, y). Text running past the
	// right edge is clipped.
	DrawText(x, y int, text string) error

	// Flush pushes the buffered content to the physical device.
	Flush() error
}

// TextFrame is an in-memory character framebuffer flushed to an io.Writer
// (the character LCD device node in production). Each flush emits the full
// frame, row by row.
type TextFrame struct {
	w, h  int
	cells [][]rune
	out   io.Writer
}

// NewTextFrame creates a cleared frame of the given size writing to out.
func NewTextFrame(width, height int, out io.Writer) *TextFrame {
	f := &TextFrame{w: width, h: height, out: out}
	f.cells = make([][]rune, height)
	for y := range f.cells {
		f.cells[y] = blankRow(width)
	}
	return f
}

func blankRow(w int) []rune {
	row := make([]rune, w)
	for i := range row {
		row[i] = ' '
	}
	return row
}

// Size returns the frame dimensions.
func (f *TextFrame) Size() (int, int) {
	return f.w, f.h
}

// Clear blanks the frame.
func (f *TextFrame) Clear() error {
	for y := range f.cells {
		f.cells[y] = blankRow(f.w)
	}
	return nil
}

// DrawText writes text at (x, y), clipping at the frame edges.
func (f *TextFrame) DrawText(x, y int, text string) error {
	if y < 0 || y >= f.h {
		return nil
	}
	for i, r := range []rune(text) {
		cx := x + i
		if cx < 0 {
			continue
		}
		if cx >= f.w {
			break
		}
		f.cells[y][cx] = r
	}
	return nil
}

// Flush writes the frame to the underlying device.
func (f *TextFrame) Flush() error {
	var b strings.Builder
	for _, row := range f.cells {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	if _, err := io.WriteString(f.out, b.String()); err != nil {
		return fmt.Errorf("flush display: %w", err)
	}
	return nil
}

// cropped is a Display restricted to a rectangle of its parent. Drawing is
// translated and clipped to the region; Clear blanks only the region.
// Flushing remains the parent's job.
type cropped struct {
	parent     Display
	x, y, w, h int
}

// Crop returns a view of d restricted to the given rectangle.
func Crop(d Display, x, y, w, h int) Display {
	return &cropped{parent: d, x: x, y: y, w: w, h: h}
}

func (c *cropped) Size() (int, int) {
	return c.w, c.h
}

func (c *cropped) Clear() error {
	blank := strings.Repeat(" ", c.w)
	for y := 0; y < c.h; y++ {
		if err := c.parent.DrawText(c.x, c.y+y, blank); err != nil {
			return err
		}
	}
	return nil
}

func (c *cropped) DrawText(x, y int, text string) error {
	if y < 0 || y >= c.h {
		return nil
	}
	if x < 0 {
		runes := []rune(text)
		if -x >= len(runes) {
			return nil
		}
		runes = runes[-x:]
		text = string(runes)
		x = 0
	}
	if x >= c.w {
		return nil
	}
	if runes := []rune(text); x+len(runes) > c.w {
		text = string(runes[:c.w-x])
	}
	return c.parent.DrawText(c.x+x, c.y+y, text)
}

func (c *cropped) Flush() error {
	return c.parent.Flush()
}

// FakeDisplay records draw operations for test assertions.
type FakeDisplay struct {
	mu sync.Mutex

	// W, H are the reported dimensions.
	W, H int

	// Ops contains one entry per operation: "clear", "text x y <s>",
	// "flush".
	Ops []string

	// Err, if set, will be returned by every operation.
	Err error
}

// NewFakeDisplay creates a FakeDisplay of the given size.
func NewFakeDisplay(width, height int) *FakeDisplay {
	return &FakeDisplay{W: width, H: height}
}

func (f *FakeDisplay) Size() (int, int) {
	return f.W, f.H
}

func (f *FakeDisplay) Clear() error {
	return f.record("clear")
}

func (f *FakeDisplay) DrawText(x, y int, text string) error {
	return f.record(fmt.Sprintf("text %d %d %s", x, y, text))
}

func (f *FakeDisplay) Flush() error {
	return f.record("flush")
}

func (f *FakeDisplay) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Ops = append(f.Ops, op)
	return nil
}

// Snapshot returns a copy of the recorded operations.
func (f *FakeDisplay) Snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Ops...)
}

// ResetOps clears the recorded operations.
func (f *FakeDisplay) ResetOps() {
	f.mu.Lock()
	f.Ops = nil
	f.mu.Unlock()
}
