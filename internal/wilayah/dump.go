package wilayah

import (
	"bytes"
	"fmt"
	"io"
)

// Row is one (code, name) tuple read from a region dump.
type Row struct {
	Code string
	Name string
}

// DumpStats summarizes a parse run.
type DumpStats struct {
	Statements int // INSERT statements seen
	Rows       int // well-formed tuples emitted
	Skipped    int // malformed tuples ignored
}

// ParseDump reads a bulk region dump and calls emit for every well-formed
// tuple. Only this grammar is understood:
//
//	dump      = { anything | insert }
//	insert    = "INSERT" ... "VALUES" tuple { "," tuple } ";"
//	tuple     = "(" string "," string ")"
//	string    = "'" { char | "''" | "\" char } "'"
//
// Text outside INSERT statements (comments, CREATE TABLE, SET ...) is
// ignored. A tuple that does not have exactly two quoted fields is counted
// as skipped and parsing resumes with the next tuple. An error returned by
// emit stops the parse.
func ParseDump(r io.Reader, emit func(Row) error) (DumpStats, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return DumpStats{}, fmt.Errorf("failed to read dump: %w", err)
	}
	p := &dumpParser{src: src}
	return p.run(emit)
}

type dumpParser struct {
	src   []byte
	pos   int
	stats DumpStats
}

var (
	kwInsert = []byte("INSERT")
	kwValues = []byte("VALUES")
)

func (p *dumpParser) run(emit func(Row) error) (DumpStats, error) {
	for {
		start := indexFold(p.src[p.pos:], kwInsert)
		if start < 0 {
			return p.stats, nil
		}
		p.pos += start + len(kwInsert)

		values := indexFold(p.src[p.pos:], kwValues)
		if values < 0 {
			return p.stats, nil
		}
		// VALUES belongs to a later statement when a ';' comes first.
		if semi := bytes.IndexByte(p.src[p.pos:], ';'); semi >= 0 && semi < values {
			p.pos += semi + 1
			continue
		}
		p.pos += values + len(kwValues)
		p.stats.Statements++

		if err := p.tuples(emit); err != nil {
			return p.stats, err
		}
	}
}

// tuples consumes the tuple list of one statement up to and including ';'.
func (p *dumpParser) tuples(emit func(Row) error) error {
	for {
		p.skipSpace()
		if p.eof() {
			return nil
		}
		if p.peek() != '(' {
			p.skipPast(';')
			return nil
		}
		p.pos++

		fields, ok := p.tuple()
		if ok && len(fields) == 2 && fields[0].quoted && fields[1].quoted && fields[0].text != "" {
			p.stats.Rows++
			if err := emit(Row{Code: fields[0].text, Name: fields[1].text}); err != nil {
				return err
			}
		} else {
			p.stats.Skipped++
			if !ok {
				p.skipPast(')')
			}
		}

		p.skipSpace()
		if p.eof() {
			return nil
		}
		switch p.peek() {
		case ',':
			p.pos++
		case ';':
			p.pos++
			return nil
		default:
			p.skipPast(';')
			return nil
		}
	}
}

type field struct {
	text   string
	quoted bool
}

// tuple reads fields after an opening '(' up to and including ')'.
func (p *dumpParser) tuple() ([]field, bool) {
	var fields []field
	for {
		p.skipSpace()
		if p.eof() {
			return nil, false
		}
		var f field
		if p.peek() == '\'' {
			text, ok := p.quoted()
			if !ok {
				return nil, false
			}
			f = field{text: text, quoted: true}
		} else {
			f = field{text: p.bare()}
		}
		fields = append(fields, f)

		p.skipSpace()
		if p.eof() {
			return nil, false
		}
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return fields, true
		default:
			return nil, false
		}
	}
}

// quoted reads a single-quoted string literal starting at the opening quote.
func (p *dumpParser) quoted() (string, bool) {
	p.pos++
	var b bytes.Buffer
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == '\\' && p.pos+1 < len(p.src):
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
		case c == '\'' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '\'':
			b.WriteByte('\'')
			p.pos += 2
		case c == '\'':
			p.pos++
			return b.String(), true
		case c == '\n':
			// Literals never span lines in this format.
			return "", false
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", false
}

// bare reads an unquoted token such as NULL or a number.
func (p *dumpParser) bare() string {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if c == ',' || c == ')' || c == ';' || isSpace(c) {
			break
		}
		p.pos++
	}
	return string(p.src[start:p.pos])
}

func (p *dumpParser) skipSpace() {
	for !p.eof() && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *dumpParser) skipPast(c byte) {
	i := bytes.IndexByte(p.src[p.pos:], c)
	if i < 0 {
		p.pos = len(p.src)
		return
	}
	p.pos += i + 1
}

func (p *dumpParser) peek() byte { return p.src[p.pos] }
func (p *dumpParser) eof() bool  { return p.pos >= len(p.src) }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// indexFold is a case-insensitive bytes.Index for ASCII keywords.
func indexFold(s, kw []byte) int {
	for i := 0; i+len(kw) <= len(s); i++ {
		if bytes.EqualFold(s[i:i+len(kw)], kw) {
			return i
		}
	}
	return -1
}
