package flatfile

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

func TestWriterOutput(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Raw("+V1")
	w.String("savedtime", "Mon Jan  1 00:00:00 2024")
	w.Int("channels", 1)
	w.String(" name", `Say "hi" \o/`)
	w.Ref("  creator", 7)
	w.EOD()
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	want := "+V1\n" +
		"savedtime \"Mon Jan  1 00:00:00 2024\"\n" +
		"channels 1\n" +
		" name \"Say \\\"hi\\\" \\\\o/\"\n" +
		"  creator #7\n" +
		EndOfDump + "\n"
	if buf.String() != want {
		t.Errorf("output mismatch:\n got %q\nwant %q", buf.String(), want)
	}
}

func TestReaderLabeledFields(t *testing.T) {
	input := "+V1\n" +
		"savedtime \"Mon Jan  1 00:00:00 2024\"\n" +
		"channels 2\n" +
		" name \"Say \\\"hi\\\"\"\n" +
		"  description \"line one\nline two\"\n" +
		"  creator #7\n"
	r := NewReader(strings.NewReader(input))
	if ch, _ := r.Peek(); ch != '+' {
		t.Fatalf("Peek = %q", ch)
	}
	if line, err := r.ReadLine(); err != nil || line != "+V1" {
		t.Fatalf("ReadLine = %q, %v", line, err)
	}
	if s, err := r.LabeledString("savedtime"); err != nil || s != "Mon Jan  1 00:00:00 2024" {
		t.Errorf("savedtime = %q, %v", s, err)
	}
	if n, err := r.LabeledInt("channels"); err != nil || n != 2 {
		t.Errorf("channels = %d, %v", n, err)
	}
	if s, err := r.LabeledString("name"); err != nil || s != `Say "hi"` {
		t.Errorf("name = %q, %v", s, err)
	}
	if s, err := r.LabeledString("description"); err != nil || s != "line one\nline two" {
		t.Errorf("description = %q, %v", s, err)
	}
	if ref, err := r.LabeledRef("creator"); err != nil || ref != gamedb.DBRef(7) {
		t.Errorf("creator = %v, %v", ref, err)
	}
	if _, _, err := r.Label(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestReaderWrongLabel(t *testing.T) {
	r := NewReader(strings.NewReader("flags 3\n"))
	if _, err := r.LabeledInt("cost"); !errors.Is(err, ErrLabel) {
		t.Errorf("expected ErrLabel, got %v", err)
	}
}

func TestReaderLegacyFields(t *testing.T) {
	r := NewReader(strings.NewReader("3\n\"Public\"\n\"\"\n#12\n"))
	if n, err := r.Int(); err != nil || n != 3 {
		t.Errorf("Int = %d, %v", n, err)
	}
	if s, err := r.QuotedString(); err != nil || s != "Public" {
		t.Errorf("QuotedString = %q, %v", s, err)
	}
	if s, err := r.QuotedString(); err != nil || s != "" {
		t.Errorf("empty QuotedString = %q, %v", s, err)
	}
	if n, err := r.Int(); err != nil || n != 12 {
		t.Errorf("ref Int = %d, %v", n, err)
	}
}

func TestQuoteRoundTrip(t *testing.T) {
	for _, s := range []string{"", "plain", `a "quoted" word`, `back\slash`, "two\nlines"} {
		r := NewReader(strings.NewReader("v " + Quote(s) + "\n"))
		got, err := r.LabeledString("v")
		if err != nil || got != s {
			t.Errorf("round trip of %q = %q, %v", s, got, err)
		}
	}
}
