package requirement

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Requirement is a single entry of a requirements file.
type Requirement struct {
	// Line is the 1-based line number in the source file.
	Line int
	// Raw is the trimmed entry as written, passed to the installer untouched.
	Raw string
	// Name is the distribution name used to look the package up.
	Name string
}

// String returns the raw requirement text.
func (r Requirement) String() string {
	return r.Raw
}

// List is the parsed content of a requirements file.
type List struct {
	// Requirements holds entries in file order, duplicates included.
	Requirements []Requirement
	// Options holds installer option lines (such as "-r other.txt"), which are not processed.
	Options []string
}

// Len returns the number of requirements.
func (l *List) Len() int {
	if l == nil {
		return 0
	}

	return len(l.Requirements)
}

// Status is the outcome of processing one requirement.
type Status string

const (
	// StatusAlreadyInstalled means the registry resolved a version before any install.
	StatusAlreadyInstalled Status = "already-installed"
	// StatusInstalled means the installer ran and exited successfully.
	StatusInstalled Status = "installed"
	// StatusFailed means the installer ran and failed.
	StatusFailed Status = "failed"
	// StatusSkipped means the package is missing but installation was not attempted.
	StatusSkipped Status = "skipped"
)

const (
	defaultCommentPrefix = "#"
	inlineComment        = '#'
	maxLineSize          = 1024 * 1024
)

// nameTerminators end the distribution name: extras, version specifiers,
// direct references, environment markers and whitespace.
const nameTerminators = "[<>=!~@; \t"

//nolint:gochecknoglobals // Compiled once, read-only.
var separatorRuns = regexp.MustCompile(`[-_.]+`)

// Parse reads a newline-delimited requirements list.
// Lines are trimmed; blank lines and lines starting with commentPrefix are skipped.
func Parse(r io.Reader, commentPrefix string) (*List, error) {
	if commentPrefix == "" {
		commentPrefix = defaultCommentPrefix
	}

	list := new(List)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineSize)

	lineNumber := 0
	for scanner.Scan() {
		lineNumber++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}

		line = stripInlineComment(line)

		if strings.HasPrefix(line, "-") {
			list.Options = append(list.Options, line)
			continue
		}

		list.Requirements = append(list.Requirements, Requirement{
			Line: lineNumber,
			Raw:  line,
			Name: ExtractName(line),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan line %d: %w", lineNumber+1, err)
	}

	return list, nil
}

// stripInlineComment drops a trailing comment, which starts at a '#' preceded by whitespace.
func stripInlineComment(line string) string {
	for i := 1; i < len(line); i++ {
		if line[i] == inlineComment && (line[i-1] == ' ' || line[i-1] == '\t') {
			return strings.TrimSpace(line[:i])
		}
	}

	return line
}

// ExtractName returns the distribution name of a requirement entry,
// e.g. "requests" for "requests[socks]>=2.0; python_version>'3'".
func ExtractName(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, nameTerminators); i >= 0 {
		raw = raw[:i]
	}

	return raw
}

// NormalizeName lowercases a distribution name and collapses runs of "-", "_" and "."
// into a single "-", so equivalent spellings compare equal.
func NormalizeName(name string) string {
	return separatorRuns.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// SameName reports whether two distribution names refer to the same package.
func SameName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}
