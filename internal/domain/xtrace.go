package domain

import (
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	m "shcov.dev/pkg/shcov/internal/model"
)

const (
	// Marker starts every trace record. bash repeats its first byte once
	// per subshell nesting level.
	Marker = "\x1eSHCOV"
	// Separator splits the fields of a trace record.
	Separator = "\x1f"
	// Delimiter is the full record prefix.
	Delimiter = Marker + Separator
)

// PS4 returns the prompt template that makes bash emit trace records.
func PS4() string {
	return Delimiter + "${BASH_SOURCE}" + Separator + "${LINENO}" + Separator
}

func stripMarker(line string) (string, bool) {
	rest := strings.TrimLeft(line, Marker[:1])
	if len(rest) == len(line) {
		return "", false
	}

	if !strings.HasPrefix(rest, Marker[1:]+Separator) {
		return "", false
	}

	return rest[len(Marker)-1+len(Separator):], true
}

// MaxLineno is the largest line number a trace record may carry. Larger
// values are rejected like malformed ones instead of sizing a hit array.
const MaxLineno = 1 << 20

// RecordCommand returns the command text of a trace record, as bash printed
// it after the prompt. ok is false for lines that are output of the traced
// program rather than trace records.
func RecordCommand(line string) (command string, ok bool) {
	rest, ok := stripMarker(strings.TrimRight(line, "\r\n"))
	if !ok {
		return "", false
	}

	fields := strings.SplitN(rest, Separator, 3)
	if len(fields) < 3 {
		return "", true
	}

	return fields[2], true
}

// traceContinuation tells the stderr lines that continue a traced command
// holding a newline apart from program output. bash prints such a command
// over several lines and only the first one carries the marker. Words are
// single quoted, except inside [[ ]] and (( )) which are printed as they
// expand and run until their closing brackets.
type traceContinuation struct {
	quoted bool
	closer string
}

func (c *traceContinuation) open() bool {
	return c.quoted || c.closer != ""
}

// start begins a new record's command and reports whether it continues on
// the next line.
func (c *traceContinuation) start(command string) bool {
	c.quoted = false
	c.closer = ""

	switch {
	case strings.HasPrefix(command, "[[ "):
		c.closer = "]]"
	case strings.HasPrefix(command, "(("):
		c.closer = "))"
	}

	return c.next(command)
}

// next advances over one printed line and reports whether the command
// continues on the line after it.
func (c *traceContinuation) next(line string) bool {
	text := strings.TrimRight(line, "\r\n")

	if c.closer != "" {
		if strings.HasSuffix(strings.TrimRight(text, " \t"), c.closer) {
			c.closer = ""
		}

		return c.open()
	}

	for i := 0; i < len(text); i++ {
		switch ch := text[i]; {
		case c.quoted:
			if ch == '\'' {
				c.quoted = false
			}
		case ch == '\\':
			i++
		case ch == '\'':
			c.quoted = true
		}
	}

	return c.open()
}

// Xtrace turns trace records into per-file hit arrays.
type Xtrace struct {
	root     m.Path
	reporter Reporter
	files    m.Coverage
	// halted files had a malformed record; their later records are dropped.
	halted  map[m.Path]int
	exclude map[m.Path]bool
}

// NewXtrace creates a parser resolving relative script paths against root.
func NewXtrace(root m.Path, reporter Reporter) *Xtrace {
	if reporter == nil {
		reporter = DiscardReporter
	}

	return &Xtrace{
		root:     root,
		reporter: reporter,
		files:    make(m.Coverage),
		halted:   make(map[m.Path]int),
		exclude:  make(map[m.Path]bool),
	}
}

// Exclude drops every record whose source is path.
func (x *Xtrace) Exclude(path m.Path) {
	x.exclude[x.resolve(string(path))] = true
}

// Feed consumes one line of the traced program's stderr. Lines that are
// not trace records are ignored.
//
// Once a record of a file carries a line number that cannot be trusted,
// LINENO in that shell no longer tracks the script, so the hits parsed so
// far are kept and the rest of the file's records are dropped.
func (x *Xtrace) Feed(line string) {
	rest, ok := stripMarker(strings.TrimRight(line, "\r\n"))
	if !ok {
		return
	}

	fields := strings.SplitN(rest, Separator, 3)
	if fields[0] == "" {
		slog.Debug("Trace record without source", "record", strconv.Quote(line))
		return
	}

	path := x.resolve(fields[0])
	if x.exclude[path] {
		return
	}

	if _, halted := x.halted[path]; halted {
		x.halted[path]++
		slog.Debug("Dropping trace record after a malformed one", "path", path, "dropped", x.halted[path])

		return
	}

	raw := ""
	if len(fields) > 1 {
		raw = fields[1]
	}

	lineno, err := strconv.Atoi(raw)

	switch {
	case err != nil:
		x.reporter.Warnf("%s: expected integer for LINENO, got %s", path, describeLineno(raw))
	case lineno <= 0:
		x.reporter.Warnf("%s: expected positive integer for LINENO, got %d", path, lineno)
	case lineno > MaxLineno:
		x.reporter.Warnf("%s: LINENO %d exceeds the supported maximum of %d", path, lineno, MaxLineno)
	default:
		x.hit(path, lineno)
		return
	}

	x.halted[path] = 0
}

// Files returns the parsed hit arrays. Slots without records are Unknown.
func (x *Xtrace) Files() m.Coverage {
	return x.files
}

func (x *Xtrace) hit(path m.Path, lineno int) {
	lines := x.files[path]
	if len(lines) < lineno {
		lines = append(lines, m.NewLines(lineno-len(lines), m.Unknown)...)
	}

	lines[lineno-1] = m.Covered(lines[lineno-1].Hits() + 1)
	x.files[path] = lines
}

func (x *Xtrace) resolve(source string) m.Path {
	if !filepath.IsAbs(source) {
		source = filepath.Join(string(x.root), source)
	}

	return m.Path(filepath.Clean(source))
}

func describeLineno(raw string) string {
	if raw == "" {
		return "nil"
	}

	return strconv.Quote(raw)
}
