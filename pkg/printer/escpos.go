package printer

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/width"
)

// ESC/POS command constants
const (
	ESC = 0x1B
	GS  = 0x1D
	FS  = 0x1C
	LF  = 0x0A
)

// Text alignment
const (
	AlignLeft   = 0
	AlignCenter = 1
	AlignRight  = 2
)

// Font size
const (
	FontNormal = 0x00
	FontDouble = 0x11 // Double width + double height
	FontWide   = 0x10 // Double width only
	FontTall   = 0x01 // Double height only
)

// Encoding names accepted by NewDocument
const (
	EncodingShiftJIS = "shift_jis"
	EncodingASCII    = "ascii"
)

// Document builds an ESC/POS byte stream for thermal printers. Text is
// measured in printer columns: full-width characters take two. The printed
// text is also kept line by line, unencoded, for previews.
type Document struct {
	buf     bytes.Buffer
	width   int // print width in columns (32 for 58mm, 48 for 80mm)
	charset string
	enc     *encoding.Encoder

	line  strings.Builder
	lines []string
}

// NewDocument creates a new ESC/POS document with the given column width and
// text encoding. Shift_JIS switches the printer into Kanji mode.
func NewDocument(charWidth int, charset string) *Document {
	if charWidth <= 0 {
		charWidth = 32
	}
	d := &Document{width: charWidth, charset: strings.ToLower(charset)}
	if d.charset == EncodingShiftJIS {
		d.enc = japanese.ShiftJIS.NewEncoder()
	}
	d.Init()
	return d
}

// Width returns the column width of the document
func (d *Document) Width() int {
	return d.width
}

// Init sends ESC @ and, for Shift_JIS, selects Kanji mode (FS C 1, FS &).
func (d *Document) Init() *Document {
	d.buf.Write([]byte{ESC, '@'})
	if d.enc != nil {
		d.buf.Write([]byte{FS, 'C', 1, FS, '&'})
	}
	return d
}

// LineFeed sends a line feed.
func (d *Document) LineFeed() *Document {
	d.newline()
	return d
}

// FeedLines sends n line feeds.
func (d *Document) FeedLines(n int) *Document {
	for i := 0; i < n; i++ {
		d.newline()
	}
	return d
}

// SetAlign sets text alignment: AlignLeft, AlignCenter, AlignRight.
func (d *Document) SetAlign(align int) *Document {
	d.buf.Write([]byte{ESC, 'a', byte(align)})
	return d
}

// SetBold enables or disables bold text.
func (d *Document) SetBold(on bool) *Document {
	b := byte(0)
	if on {
		b = 1
	}
	d.buf.Write([]byte{ESC, 'E', b})
	return d
}

// SetFontSize sets the character size. Use FontNormal, FontDouble, FontWide, or FontTall.
func (d *Document) SetFontSize(size byte) *Document {
	d.buf.Write([]byte{GS, '!', size})
	return d
}

// Text writes a line of text followed by a line feed.
func (d *Document) Text(s string) *Document {
	d.write(s)
	d.newline()
	return d
}

// TextF writes a formatted line of text followed by a line feed.
func (d *Document) TextF(format string, args ...any) *Document {
	return d.Text(fmt.Sprintf(format, args...))
}

// Separator prints a full-width separator line.
func (d *Document) Separator(char byte) *Document {
	d.pad(strings.Repeat(string(char), d.width))
	d.newline()
	return d
}

// KeyValue prints a left-aligned key and right-aligned value on the same line.
// Example: "合計                    ¥300"
func (d *Document) KeyValue(key, value string) *Document {
	d.write(key)
	d.pad(strings.Repeat(" ", d.gap(key, value)))
	d.write(value)
	d.newline()
	return d
}

// ItemLine prints a receipt item line: name, then right-aligned total.
// A name too long for the line is truncated at a column boundary.
func (d *Document) ItemLine(name, total string) *Document {
	room := d.width - DisplayWidth(total) - 1
	if room < 1 {
		room = 1
	}
	name = Truncate(name, room)
	d.write(name)
	d.pad(strings.Repeat(" ", d.gap(name, total)))
	d.write(total)
	d.newline()
	return d
}

// Cut sends the paper cut command (full cut).
func (d *Document) Cut() *Document {
	d.buf.Write([]byte{GS, 'V', 0x00})
	return d
}

// PartialCut sends the partial cut command.
func (d *Document) PartialCut() *Document {
	d.buf.Write([]byte{GS, 'V', 0x01})
	return d
}

// Bytes returns the accumulated ESC/POS byte stream.
func (d *Document) Bytes() []byte {
	return d.buf.Bytes()
}

// Lines returns the printed text so far, one entry per line feed. Trailing
// text without a line feed is included as the last entry.
func (d *Document) Lines() []string {
	out := append([]string(nil), d.lines...)
	if d.line.Len() > 0 {
		out = append(out, d.line.String())
	}
	return out
}

// Reset clears the buffer and reinitializes the document.
func (d *Document) Reset() *Document {
	d.buf.Reset()
	d.line.Reset()
	d.lines = nil
	d.Init()
	return d
}

func (d *Document) gap(left, right string) int {
	spaces := d.width - DisplayWidth(left) - DisplayWidth(right)
	if spaces < 1 {
		spaces = 1
	}
	return spaces
}

// pad writes ASCII layout characters (spaces, separators) as they are.
func (d *Document) pad(s string) {
	d.buf.WriteString(s)
	d.line.WriteString(s)
}

func (d *Document) newline() {
	d.buf.WriteByte(LF)
	d.lines = append(d.lines, d.line.String())
	d.line.Reset()
}

// write encodes s for the printer. Characters the code page lacks become '?'.
func (d *Document) write(s string) {
	d.line.WriteString(s)
	if d.enc == nil {
		for _, r := range s {
			if r < 0x80 {
				d.buf.WriteRune(r)
			} else {
				d.buf.WriteByte('?')
			}
		}
		return
	}
	for _, r := range s {
		b, err := d.enc.Bytes([]byte(string(r)))
		if err != nil {
			d.buf.WriteByte('?')
			continue
		}
		d.buf.Write(b)
	}
}

// DisplayWidth returns the number of printer columns s occupies.
func DisplayWidth(s string) int {
	n := 0
	for _, r := range s {
		n += runeWidth(r)
	}
	return n
}

// Truncate cuts s to at most cols columns.
func Truncate(s string, cols int) string {
	n := 0
	for i, r := range s {
		w := runeWidth(r)
		if n+w > cols {
			return s[:i]
		}
		n += w
	}
	return s
}

func runeWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	default:
		return 1
	}
}
