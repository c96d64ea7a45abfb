// Package diff computes line-oriented differences between two snapshots.
//
// Lines keep their trailing newline, so concatenating segment text
// reproduces the inputs exactly:
//
//	r := diff.Lines(before, after)
//	r.Old() == before && r.New() == after
package diff

import (
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	surrogateMin = 0xD800
	surrogateMax = 0xDFFF
)

// Kind tags a segment as shared by both texts or present in only one.
type Kind int

const (
	Unchanged Kind = iota
	Removed
	Added
)

func (k Kind) String() string {
	switch k {
	case Removed:
		return "removed"
	case Added:
		return "added"
	default:
		return "unchanged"
	}
}

func (k Kind) prefix() string {
	switch k {
	case Removed:
		return "- "
	case Added:
		return "+ "
	default:
		return "  "
	}
}

// Segment is a run of whole lines sharing one Kind.
type Segment struct {
	Kind Kind
	Text string
}

// Result is an ordered edit script from the earlier text to the later one.
type Result struct {
	Segments []Segment
}

// Stats counts lines per kind.
type Stats struct {
	Unchanged int
	Removed   int
	Added     int
}

// Lines diffs before and after at line granularity. Every distinct line is
// mapped to its own rune and the rune sequences are aligned with Myers'
// algorithm without a time limit, so the script keeps a longest common
// subsequence of lines. Each change block is one removed run followed by
// one added run.
func Lines(before, after string) Result {
	if before == after {
		return Result{Segments: []Segment{{Kind: Unchanged, Text: before}}}
	}

	enc := newLineEncoder()
	a, okA := enc.encode(before)
	b, okB := enc.encode(after)
	if !okA || !okB {
		return replaced(before, after)
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMainRunes(a, b, false)

	segments := make([]Segment, 0, len(diffs))
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		kind := Unchanged
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			kind = Removed
		case diffmatchpatch.DiffInsert:
			kind = Added
		}
		text := enc.decode(d.Text)
		if n := len(segments); n > 0 && segments[n-1].Kind == kind {
			segments[n-1].Text += text
			continue
		}
		segments = append(segments, Segment{Kind: kind, Text: text})
	}
	return Result{Segments: segments}
}

// replaced is the whole-text script used when the inputs hold more distinct
// lines than there are runes to number them.
func replaced(before, after string) Result {
	var segments []Segment
	if before != "" {
		segments = append(segments, Segment{Kind: Removed, Text: before})
	}
	if after != "" {
		segments = append(segments, Segment{Kind: Added, Text: after})
	}
	return Result{Segments: segments}
}

// lineEncoder numbers distinct lines with valid, non-surrogate runes.
type lineEncoder struct {
	ids   map[string]rune
	lines map[rune]string
	next  rune
}

func newLineEncoder() *lineEncoder {
	return &lineEncoder{ids: map[string]rune{}, lines: map[rune]string{}, next: 1}
}

func (e *lineEncoder) encode(text string) ([]rune, bool) {
	var out []rune
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		id, ok := e.ids[line]
		if !ok {
			if e.next > utf8.MaxRune {
				return nil, false
			}
			id = e.next
			e.ids[line] = id
			e.lines[id] = line
			e.next++
			if e.next == surrogateMin {
				e.next = surrogateMax + 1
			}
		}
		out = append(out, id)
	}
	return out, true
}

func (e *lineEncoder) decode(encoded string) string {
	var sb strings.Builder
	for _, id := range encoded {
		sb.WriteString(e.lines[id])
	}
	return sb.String()
}

// Changed reports whether the script contains any added or removed lines.
func (r Result) Changed() bool {
	for _, s := range r.Segments {
		if s.Kind != Unchanged {
			return true
		}
	}
	return false
}

// Old rebuilds the earlier text from unchanged and removed segments.
func (r Result) Old() string {
	return r.join(Unchanged, Removed)
}

// New rebuilds the updated text from unchanged and added segments.
func (r Result) New() string {
	return r.join(Unchanged, Added)
}

func (r Result) join(kinds ...Kind) string {
	var sb strings.Builder
	for _, s := range r.Segments {
		for _, k := range kinds {
			if s.Kind == k {
				sb.WriteString(s.Text)
				break
			}
		}
	}
	return sb.String()
}

// Stats counts the lines in each kind of segment.
func (r Result) Stats() Stats {
	var st Stats
	for _, s := range r.Segments {
		n := len(splitLines(s.Text))
		switch s.Kind {
		case Removed:
			st.Removed += n
		case Added:
			st.Added += n
		default:
			st.Unchanged += n
		}
	}
	return st
}

// Render formats removed and added lines for people, one line each,
// prefixed with "- " or "+ " in order of appearance. Unchanged lines are
// omitted. The result has no trailing newline.
func (r Result) Render() string {
	var out []string
	for _, s := range r.Segments {
		if s.Kind == Unchanged {
			continue
		}
		for _, line := range splitLines(s.Text) {
			out = append(out, s.Kind.prefix()+line)
		}
	}
	return strings.Join(out, "\n")
}

// Summary concatenates removed and added text without markers.
func (r Result) Summary() string {
	return r.join(Removed, Added)
}

// splitLines splits on "\n" and drops the empty tail left by a final newline.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
