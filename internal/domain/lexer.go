package domain

import (
	"bytes"
	"regexp"
	"strings"
)

// Lexer finds the lines of a shell script that can never receive a trace
// record of their own.
type Lexer interface {
	// IrrelevantLines returns the 1-indexed line numbers to ignore, in
	// ascending order.
	IrrelevantLines(content []byte) []int
}

type lexer struct{}

// NewLexer constructs the line-oriented relevance classifier.
func NewLexer() Lexer {
	return &lexer{}
}

// syntaxWords are lines bash never traces on their own.
var syntaxWords = map[string]bool{
	"then": true, "do": true, "else": true, "fi": true, "done": true, "esac": true,
	"if": true, "elif": true, "while": true, "until": true,
	"{": true, "}": true, "(": true, ")": true,
	";;": true, ";&": true, ";;&": true,
}

// functionHeader matches a function definition with no body on the same line.
var functionHeader = regexp.MustCompile(
	`^(function[ \t]+[^ \t(){}]+([ \t]*\([ \t]*\))?|[^ \t(){}=$"'` + "`" + `]+[ \t]*\([ \t]*\))[ \t]*[{(]?$`,
)

func (l *lexer) IrrelevantLines(content []byte) []int {
	state := &lexState{}

	lines := bytes.Split(content, []byte{'\n'})
	if len(lines) > 0 && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}

	ignored := make([]bool, len(lines))
	stmt := statement{first: -1}

	for i, raw := range lines {
		line := strings.TrimSuffix(string(raw), "\r")

		if state.inHeredoc() {
			state.heredocLine(line)

			ignored[i] = true

			continue
		}

		switch {
		case stmt.first < 0:
			stmt = statement{first: i, anchor: i}
		case state.inLiteral():
			stmt.anchor = i
		case startsCommand(line):
			stmt.mark(ignored)
			stmt = statement{first: i, anchor: i}
		}

		code := state.scanLine(line)
		if i == stmt.first {
			stmt.code = code
		}

		stmt.last = i

		state.endLine()

		if state.continuation || state.inLiteral() {
			continue
		}

		stmt.mark(ignored)
		stmt = statement{first: -1}
	}

	if stmt.first >= 0 {
		stmt.mark(ignored)
	}

	irrelevant := make([]int, 0)

	for i, skip := range ignored {
		if skip {
			irrelevant = append(irrelevant, i+1)
		}
	}

	return irrelevant
}

// statement is one command that may span several lines. bash reports it at
// the line where its last multi-line word ends, or at its first line when
// only backslash continuations join its lines.
type statement struct {
	first  int
	last   int
	anchor int
	code   string
}

func (s statement) mark(ignored []bool) {
	for i := s.first; i <= s.last; i++ {
		if i != s.anchor {
			ignored[i] = true
		}
	}

	if s.anchor == s.first && isSyntaxOnly(s.code) {
		ignored[s.anchor] = true
	}
}

// listOperators begin the next command of a pipeline or list when they
// start a continued line.
var listOperators = []string{"&&", "||", "|", ";"}

func startsCommand(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")

	for _, op := range listOperators {
		if strings.HasPrefix(trimmed, op) {
			return true
		}
	}

	return false
}

func isSyntaxOnly(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return true
	}

	if syntaxWords[code] {
		return true
	}

	return functionHeader.MatchString(code)
}

type lexContext int

const (
	ctxCode lexContext = iota
	ctxSingle
	ctxANSI
	ctxDouble
	ctxBacktick
	ctxSubst
	ctxGroup
	ctxArray
	ctxArith
)

type lexFrame struct {
	ctx   lexContext
	depth int
}

type heredoc struct {
	word      string
	stripTabs bool
}

// lexState carries quoting and heredoc context from one line to the next.
type lexState struct {
	stack        []lexFrame
	continuation bool
	pending      []heredoc
	active       []heredoc
}

func (s *lexState) top() *lexFrame {
	if len(s.stack) == 0 {
		return &lexFrame{ctx: ctxCode}
	}

	return &s.stack[len(s.stack)-1]
}

func (s *lexState) push(ctx lexContext) {
	s.stack = append(s.stack, lexFrame{ctx: ctx})
}

func (s *lexState) pop() {
	if len(s.stack) > 0 {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

// inLiteral reports whether the next line starts inside a word that spans
// lines: a string, an array, an arithmetic expression or a command
// substitution. Such a line is part of the previous statement.
func (s *lexState) inLiteral() bool {
	for _, frame := range s.stack {
		if frame.ctx != ctxGroup && frame.ctx != ctxCode {
			return true
		}
	}

	return false
}

// inQuote reports whether the next line starts inside a quoted string.
func (s *lexState) inQuote() bool {
	switch s.top().ctx {
	case ctxSingle, ctxANSI, ctxDouble:
		return true
	}

	return false
}

func (s *lexState) inHeredoc() bool {
	return len(s.active) > 0
}

func (s *lexState) heredocLine(line string) {
	doc := s.active[0]

	candidate := line
	if doc.stripTabs {
		candidate = strings.TrimLeft(line, "\t")
	}

	if candidate == doc.word {
		s.active = s.active[1:]
	}
}

// endLine starts pending heredoc bodies once the line holding their
// redirection is complete.
func (s *lexState) endLine() {
	if s.continuation || s.inQuote() || len(s.pending) == 0 {
		return
	}

	s.active = append(s.active, s.pending...)
	s.pending = nil
}

// scanLine advances the state over one line and returns the line without
// its trailing comment.
func (s *lexState) scanLine(line string) string {
	s.continuation = false

	for i := 0; i < len(line); i++ {
		c := line[i]

		switch s.top().ctx {
		case ctxSingle:
			if c == '\'' {
				s.pop()
			}
		case ctxANSI:
			switch c {
			case '\\':
				i++
			case '\'':
				s.pop()
			}
		case ctxDouble:
			i = s.scanDouble(line, i)
		default:
			next, comment := s.scanCode(line, i)
			if comment {
				return line[:i]
			}

			i = next
		}
	}

	return line
}

func (s *lexState) scanDouble(line string, i int) int {
	switch line[i] {
	case '\\':
		if i+1 == len(line) {
			s.continuation = true
		}

		return i + 1
	case '"':
		s.pop()
	case '`':
		s.push(ctxBacktick)
	case '$':
		return s.scanDollar(line, i)
	}

	return i
}

// scanCode handles one character in a code-like context. It returns the
// index of the last consumed character and whether a comment starts at i.
func (s *lexState) scanCode(line string, i int) (int, bool) {
	frame := s.top()

	switch line[i] {
	case '\\':
		if i+1 == len(line) {
			s.continuation = true
		}

		return i + 1, false
	case '\'':
		s.push(ctxSingle)
	case '"':
		s.push(ctxDouble)
	case '`':
		if frame.ctx == ctxBacktick {
			s.pop()
		} else {
			s.push(ctxBacktick)
		}
	case '$':
		return s.scanDollar(line, i), false
	case '#':
		if frame.ctx != ctxArith && startsWord(line, i) {
			return i, true
		}
	case '(':
		return s.openParen(line, i), false
	case ')':
		return s.closeParen(line, i), false
	case '<':
		if frame.ctx != ctxArith && frame.ctx != ctxArray {
			return s.scanRedirect(line, i), false
		}
	}

	return i, false
}

func (s *lexState) scanDollar(line string, i int) int {
	if i+1 >= len(line) {
		return i
	}

	switch line[i+1] {
	case '\'':
		if s.top().ctx == ctxDouble {
			return i
		}

		s.push(ctxANSI)

		return i + 1
	case '(':
		if i+2 < len(line) && line[i+2] == '(' {
			s.push(ctxArith)
			return i + 2
		}

		s.push(ctxSubst)

		return i + 1
	case '#', '$', '?', '!', '@', '*', '-':
		return i + 1
	}

	return i
}

func (s *lexState) openParen(line string, i int) int {
	frame := s.top()

	switch {
	case frame.ctx == ctxArith:
		frame.depth++
	case frame.ctx != ctxArray && i > 0 && line[i-1] == '=':
		s.push(ctxArray)
	case frame.ctx != ctxArray && i+1 < len(line) && line[i+1] == '(':
		s.push(ctxArith)
		return i + 1
	default:
		s.push(ctxGroup)
	}

	return i
}

func (s *lexState) closeParen(line string, i int) int {
	frame := s.top()

	switch frame.ctx {
	case ctxArith:
		if frame.depth > 0 {
			frame.depth--
			return i
		}

		s.pop()

		if i+1 < len(line) && line[i+1] == ')' {
			return i + 1
		}
	case ctxSubst, ctxGroup, ctxArray:
		s.pop()
	}

	return i
}

// scanRedirect recognises heredoc redirections and queues their terminators.
func (s *lexState) scanRedirect(line string, i int) int {
	if i+1 >= len(line) || line[i+1] != '<' {
		return i
	}

	j := i + 2
	if j < len(line) && line[j] == '<' {
		return j
	}

	doc := heredoc{}
	if j < len(line) && line[j] == '-' {
		doc.stripTabs = true
		j++
	}

	for j < len(line) && (line[j] == ' ' || line[j] == '\t') {
		j++
	}

	word, end := readHeredocWord(line, j)
	if word == "" {
		return i + 1
	}

	doc.word = word
	s.pending = append(s.pending, doc)

	return end - 1
}

// readHeredocWord reads a heredoc terminator starting at j with quotes
// removed. It returns the word and the index just past it.
func readHeredocWord(line string, j int) (string, int) {
	var word strings.Builder

	for j < len(line) {
		c := line[j]

		switch c {
		case ' ', '\t', ';', '&', '|', '<', '>', '(', ')':
			return word.String(), j
		case '\'', '"':
			end := strings.IndexByte(line[j+1:], c)
			if end < 0 {
				word.WriteString(line[j+1:])
				return word.String(), len(line)
			}

			word.WriteString(line[j+1 : j+1+end])
			j += end + 2

			continue
		case '\\':
			if j+1 < len(line) {
				word.WriteByte(line[j+1])
			}

			j += 2

			continue
		}

		word.WriteByte(c)
		j++
	}

	return word.String(), j
}

func startsWord(line string, i int) bool {
	if i == 0 {
		return true
	}

	switch line[i-1] {
	case ' ', '\t', ';', '&', '|', '(', ')':
		return true
	}

	return false
}
