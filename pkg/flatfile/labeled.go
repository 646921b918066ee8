package flatfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// EndOfDump terminates every snapshot file.
const EndOfDump = "***END OF DUMP***"

// ErrLabel is returned when a labeled field carries an unexpected label.
var ErrLabel = errors.New("flatfile: unexpected label")

// Reader reads the field syntax shared by the channel snapshot formats:
// labeled lines (`label value` or `label "quoted value"`) and the bare
// positional values of the legacy layout. Quoted values escape `\` and `"`
// with a backslash and may span lines.
type Reader struct {
	r    *bufio.Reader
	line int
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r), line: 1}
}

// Line returns the current 1-based line number.
func (r *Reader) Line() int { return r.line }

// Peek returns the next byte without consuming it.
func (r *Reader) Peek() (byte, error) {
	b, err := r.r.Peek(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) readByte() (byte, error) {
	b, err := r.r.ReadByte()
	if b == '\n' {
		r.line++
	}
	return b, err
}

// ReadLine reads the rest of the current line, without the newline.
func (r *Reader) ReadLine() (string, error) {
	line, err := r.r.ReadString('\n')
	if strings.HasSuffix(line, "\n") {
		r.line++
	}
	if err == io.EOF && line != "" {
		err = nil
	}
	return strings.TrimRight(line, "\r\n"), err
}

func (r *Reader) skipSpace(newlines bool) error {
	for {
		ch, err := r.Peek()
		if err != nil {
			return err
		}
		if ch != ' ' && ch != '\t' && !(newlines && (ch == '\n' || ch == '\r')) {
			return nil
		}
		r.readByte()
	}
}

// quoted reads a "..." string starting at the current byte.
func (r *Reader) quoted() (string, error) {
	if b, err := r.readByte(); err != nil {
		return "", err
	} else if b != '"' {
		return "", fmt.Errorf("flatfile: line %d: expected '\"', got %q", r.line, b)
	}
	var buf strings.Builder
	for {
		b, err := r.readByte()
		if err != nil {
			return buf.String(), fmt.Errorf("flatfile: line %d: unterminated string: %w", r.line, err)
		}
		switch b {
		case '"':
			return buf.String(), nil
		case '\\':
			next, err := r.readByte()
			if err != nil {
				return buf.String(), fmt.Errorf("flatfile: line %d: unterminated escape: %w", r.line, err)
			}
			buf.WriteByte(next)
		default:
			buf.WriteByte(b)
		}
	}
}

// Label reads one labeled line and returns its label and value. Quoted
// values are returned unescaped.
func (r *Reader) Label() (label, value string, err error) {
	if err := r.skipSpace(true); err != nil {
		return "", "", err
	}
	var lb strings.Builder
	for {
		ch, err := r.Peek()
		if err != nil || ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			break
		}
		r.readByte()
		lb.WriteByte(ch)
	}
	label = lb.String()
	if err := r.skipSpace(false); err != nil && err != io.EOF {
		return label, "", err
	}
	if ch, err := r.Peek(); err == nil && ch == '"' {
		value, err = r.quoted()
		if err != nil {
			return label, value, err
		}
		_, err = r.ReadLine()
		if err == io.EOF {
			err = nil
		}
		return label, value, err
	}
	value, err = r.ReadLine()
	if err == io.EOF {
		err = nil
	}
	return label, strings.TrimSpace(value), err
}

func (r *Reader) expect(want string) (string, error) {
	label, value, err := r.Label()
	if err != nil {
		return "", fmt.Errorf("flatfile: line %d: reading %s: %w", r.line, want, err)
	}
	if label != want {
		return "", fmt.Errorf("%w: line %d: got %q, want %q", ErrLabel, r.line, label, want)
	}
	return value, nil
}

// LabeledString reads a labeled string field.
func (r *Reader) LabeledString(want string) (string, error) {
	return r.expect(want)
}

// LabeledInt reads a labeled integer field.
func (r *Reader) LabeledInt(want string) (int, error) {
	value, err := r.expect(want)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("flatfile: line %d: %s: %w", r.line, want, err)
	}
	return n, nil
}

// LabeledRef reads a labeled #dbref field.
func (r *Reader) LabeledRef(want string) (gamedb.DBRef, error) {
	value, err := r.expect(want)
	if err != nil {
		return gamedb.Nothing, err
	}
	return parseRef(value)
}

func parseRef(s string) (gamedb.DBRef, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if err != nil {
		return gamedb.Nothing, fmt.Errorf("flatfile: bad dbref %q: %w", s, err)
	}
	return gamedb.DBRef(n), nil
}

// Int reads a bare integer line, as used by the legacy layout.
func (r *Reader) Int() (int, error) {
	if err := r.skipSpace(true); err != nil {
		return 0, err
	}
	line, err := r.ReadLine()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(line), "#"))
	if err != nil {
		return 0, fmt.Errorf("flatfile: line %d: %w", r.line-1, err)
	}
	return n, nil
}

// QuotedString reads a bare quoted string, as used by the legacy layout.
func (r *Reader) QuotedString() (string, error) {
	if err := r.skipSpace(true); err != nil {
		return "", err
	}
	s, err := r.quoted()
	if err != nil {
		return s, err
	}
	if _, err := r.ReadLine(); err != nil && err != io.EOF {
		return s, err
	}
	return s, nil
}

// Writer emits the labeled snapshot syntax. The first error is sticky and
// returned by Flush.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (wr *Writer) writef(format string, args ...any) {
	if wr.err != nil {
		return
	}
	_, wr.err = fmt.Fprintf(wr.w, format, args...)
}

// Raw writes line followed by a newline.
func (wr *Writer) Raw(line string) { wr.writef("%s\n", line) }

// String writes `label "value"`.
func (wr *Writer) String(label, value string) { wr.writef("%s %s\n", label, Quote(value)) }

// Int writes `label n`.
func (wr *Writer) Int(label string, n int) { wr.writef("%s %d\n", label, n) }

// Ref writes `label #n`.
func (wr *Writer) Ref(label string, ref gamedb.DBRef) { wr.writef("%s #%d\n", label, int(ref)) }

// EOD writes the end-of-dump marker.
func (wr *Writer) EOD() { wr.Raw(EndOfDump) }

// Flush flushes buffered output and returns the first error seen.
func (wr *Writer) Flush() error {
	if wr.err != nil {
		return wr.err
	}
	return wr.w.Flush()
}

// Quote produces a quoted string, escaping only `\` and `"`.
func Quote(s string) string {
	var buf strings.Builder
	buf.Grow(len(s) + 2)
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			buf.WriteByte('\\')
		}
		buf.WriteByte(s[i])
	}
	buf.WriteByte('"')
	return buf.String()
}
