package chunker

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// Span is a half-open byte range [Start, End) of a source text.
type Span struct {
	Start int
	End   int
}

// Len returns the span length in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

// cutPriorities lists separators from most to least preferred. A cut is
// placed directly after the separator.
var cutPriorities = [][]string{
	{"\n\n"},
	{". ", "? ", "! ", ".\n", "?\n", "!\n"},
	{"; ", ";\n", "\n"},
	{" ", "\t"},
}

// piece is a span of the source text on its way to becoming a chunk.
type piece struct {
	Span
	level   domain.ChunkLevel
	overlap int
	atomic  bool
}

// splitter cuts a text into spans without ever cutting inside a protected
// region such as a table.
type splitter struct {
	text      string
	protected []Span
}

func newSplitter(text string) *splitter {
	return &splitter{text: text, protected: findTables(text)}
}

// cutAllowed reports whether pos lies outside every protected region.
func (s *splitter) cutAllowed(pos int) bool {
	for _, p := range s.protected {
		if pos > p.Start && pos < p.End {
			return false
		}
	}
	return true
}

// headingBounds returns the line starts inside sp matched by any pattern.
func (s *splitter) headingBounds(sp Span, patterns []*regexp.Regexp) []int {
	seen := make(map[int]bool)
	var bounds []int
	sub := s.text[sp.Start:sp.End]
	for _, re := range patterns {
		for _, m := range re.FindAllStringIndex(sub, -1) {
			pos := sp.Start + m[0]
			if pos == sp.Start || seen[pos] || !s.cutAllowed(pos) {
				continue
			}
			seen[pos] = true
			bounds = append(bounds, pos)
		}
	}
	sort.Ints(bounds)
	return bounds
}

// segments cuts sp at the given sorted positions.
func segments(sp Span, bounds []int) []Span {
	segs := make([]Span, 0, len(bounds)+1)
	start := sp.Start
	for _, b := range bounds {
		if b <= start || b >= sp.End {
			continue
		}
		segs = append(segs, Span{start, b})
		start = b
	}
	return append(segs, Span{start, sp.End})
}

// pack merges adjacent segments greedily up to target bytes and splits any
// single segment larger than target.
func (s *splitter) pack(segs []Span, target int) []Span {
	var out []Span
	var cur *Span
	for _, seg := range segs {
		if seg.Len() > target {
			if cur != nil {
				out = append(out, *cur)
				cur = nil
			}
			out = append(out, s.splitBySize(seg, target)...)
			continue
		}
		if cur != nil && cur.Len()+seg.Len() <= target {
			cur.End = seg.End
			continue
		}
		if cur != nil {
			out = append(out, *cur)
		}
		next := seg
		cur = &next
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

// splitBySize cuts sp into pieces of at most target bytes, preferring
// paragraph, then sentence, then word boundaries.
func (s *splitter) splitBySize(sp Span, target int) []Span {
	if target <= 0 {
		return []Span{sp}
	}
	var out []Span
	start := sp.Start
	for sp.End-start > target {
		cut := s.bestCut(start, start+target)
		if cut >= sp.End {
			break
		}
		out = append(out, Span{start, cut})
		start = cut
	}
	return append(out, Span{start, sp.End})
}

// bestCut picks a cut position in (lo, hi]. The result is always > lo.
func (s *splitter) bestCut(lo, hi int) int {
	floor := lo + (hi-lo)/2
	window := s.text[floor:hi]
	for _, seps := range cutPriorities {
		best := -1
		for _, sep := range seps {
			if i := strings.LastIndex(window, sep); i >= 0 {
				cut := floor + i + len(sep)
				if cut > best && cut > lo && s.cutAllowed(cut) {
					best = cut
				}
			}
		}
		if best > 0 {
			return best
		}
	}

	cut := hi
	for cut > lo+1 && !utf8.RuneStart(s.text[cut]) {
		cut--
	}
	for _, p := range s.protected {
		if cut > p.Start && cut < p.End {
			if p.Start > lo {
				return p.Start
			}
			return p.End
		}
	}
	return cut
}

// overlapStart returns where cur's content begins when it repeats up to n
// bytes of prev. Overlap starts at a word boundary and never reaches into
// an atomic piece or a protected region.
func (s *splitter) overlapStart(prev, cur piece, n int) int {
	if n <= 0 || prev.atomic || cur.atomic {
		return cur.Start
	}
	start := cur.Start - n
	if start <= prev.Start {
		return cur.Start
	}
	region := s.text[start:cur.Start]
	i := strings.IndexFunc(region, unicode.IsSpace)
	if i < 0 {
		return cur.Start
	}
	start += i + 1
	for start < cur.Start && !utf8.RuneStart(s.text[start]) {
		start++
	}
	if start >= cur.Start {
		return cur.Start
	}
	for _, p := range s.protected {
		if p.Start < cur.Start && p.End > start {
			return cur.Start
		}
	}
	return start
}

// mergeBlank folds whitespace-only pieces into a neighbour so every piece
// carries content. Pieces stay contiguous.
func (s *splitter) mergeBlank(pieces []piece) []piece {
	out := make([]piece, 0, len(pieces))
	var pending *Span
	for _, p := range pieces {
		if p.Len() == 0 {
			continue
		}
		if strings.TrimSpace(s.text[p.Start:p.End]) == "" {
			if len(out) > 0 {
				out[len(out)-1].End = p.End
			} else if pending == nil {
				sp := p.Span
				pending = &sp
			} else {
				pending.End = p.End
			}
			continue
		}
		if pending != nil {
			p.Start = pending.Start
			pending = nil
		}
		out = append(out, p)
	}
	if pending != nil {
		out = append(out, piece{Span: *pending, level: domain.LevelParagraph})
	}
	return out
}

// Sentences tiles text into sentence spans. A sentence ends after terminal
// punctuation followed by whitespace, or at a blank line. The trailing
// whitespace belongs to the sentence it follows.
func Sentences(text string) []Span {
	var spans []Span
	start := 0
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		end := -1
		switch {
		case r == '.' || r == '?' || r == '!':
			j := i + size
			if j < len(text) && isSpaceByte(text[j]) {
				end = j
			}
		case r == '\n' && i+1 < len(text) && text[i+1] == '\n':
			end = i + 1
		}
		if end > 0 {
			for end < len(text) && isSpaceByte(text[end]) {
				end++
			}
			spans = append(spans, Span{start, end})
			start = end
			i = end
			continue
		}
		i += size
	}
	if start < len(text) {
		spans = append(spans, Span{start, len(text)})
	}
	return spans
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

// findTables locates blocks of two or more consecutive pipe-delimited rows.
// Each span includes the trailing newline of its last row.
func findTables(text string) []Span {
	var tables []Span
	rows, blockStart, blockEnd := 0, 0, 0
	pos := 0
	for pos < len(text) {
		lineEnd, next := len(text), len(text)
		if i := strings.IndexByte(text[pos:], '\n'); i >= 0 {
			lineEnd = pos + i
			next = lineEnd + 1
		}
		if tableRowPattern.MatchString(text[pos:lineEnd]) {
			if rows == 0 {
				blockStart = pos
			}
			rows++
			blockEnd = next
		} else {
			if rows >= 2 {
				tables = append(tables, Span{blockStart, blockEnd})
			}
			rows = 0
		}
		pos = next
	}
	if rows >= 2 {
		tables = append(tables, Span{blockStart, blockEnd})
	}
	return tables
}
