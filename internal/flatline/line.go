// Package flatline decodes the flat, line-oriented description of an SLD
// template's structure.
//
// Each line starts with a kind tag followed by tab-separated fields:
//
//	FeatureType[\t<name>[;<title>]]
//	Rule\t<name>;<title>;<abstract>
//	Field\t<unused>\t<unused>\t<offset>\t<symbolizer>\t<default>
//
// Lines carry no parent pointer. A Rule belongs to the most recent
// FeatureType and a Field to the most recent Rule, so order is significant.
package flatline

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Kind tags a flat record.
type Kind string

const (
	KindFeatureType Kind = "FeatureType"
	KindRule        Kind = "Rule"
	KindField       Kind = "Field"
)

// Field positions within a tab-split Field line.
const (
	fieldOffsetPos     = 3
	fieldSymbolizerPos = 4
	fieldDefaultPos    = 5
)

// Line is one decoded flat record. Only the fields relevant to Kind are set.
type Line struct {
	Kind Kind

	// FeatureType and Rule
	Name  string
	Title string

	// Rule
	Abstract string

	// Field
	Offset     int
	Symbolizer string
	Default    string
}

// SyntaxError reports a line that could not be decoded.
type SyntaxError struct {
	Line   int // 1-based
	Text   string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("flat line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// FeatureType builds a FeatureType record.
func FeatureType(name, title string) Line {
	return Line{Kind: KindFeatureType, Name: name, Title: title}
}

// Rule builds a Rule record.
func Rule(name, title, abstract string) Line {
	return Line{Kind: KindRule, Name: name, Title: title, Abstract: abstract}
}

// Field builds a Field record.
func Field(offset int, symbolizer, def string) Line {
	return Line{Kind: KindField, Offset: offset, Symbolizer: symbolizer, Default: def}
}

// ParseLine decodes a single flat record. lineNum is used for error reporting.
func ParseLine(lineNum int, text string) (Line, error) {
	text = strings.TrimRight(text, "\r\n")
	cols := strings.Split(text, "\t")

	switch Kind(strings.TrimSpace(cols[0])) {
	case KindFeatureType:
		parts := splitSemicolons(col(cols, 1), 2)
		return FeatureType(parts[0], parts[1]), nil

	case KindRule:
		parts := splitSemicolons(col(cols, 1), 3)
		return Rule(parts[0], parts[1], parts[2]), nil

	case KindField:
		rawOffset := strings.TrimSpace(col(cols, fieldOffsetPos))
		offset, err := strconv.Atoi(rawOffset)
		if err != nil {
			return Line{}, &SyntaxError{Line: lineNum, Text: text, Reason: "invalid template offset"}
		}
		if offset < 0 {
			return Line{}, &SyntaxError{Line: lineNum, Text: text, Reason: "negative template offset"}
		}
		return Field(offset, col(cols, fieldSymbolizerPos), col(cols, fieldDefaultPos)), nil

	default:
		return Line{}, &SyntaxError{Line: lineNum, Text: text, Reason: "unknown record kind"}
	}
}

// Parse decodes every record from r in order. Blank lines are skipped but
// still count toward line numbers.
func Parse(r io.Reader) ([]Line, error) {
	var lines []Line

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}

		line, err := ParseLine(lineNum, text)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read flat lines: %w", err)
	}

	return lines, nil
}

// ParseString is Parse over an in-memory document.
func ParseString(s string) ([]Line, error) {
	return Parse(strings.NewReader(s))
}

// Format renders a record back into its flat text form.
func (l Line) Format() string {
	switch l.Kind {
	case KindFeatureType:
		if l.Name == "" && l.Title == "" {
			return string(KindFeatureType)
		}
		return string(KindFeatureType) + "\t" + l.Name + ";" + l.Title
	case KindRule:
		return string(KindRule) + "\t" + l.Name + ";" + l.Title + ";" + l.Abstract
	case KindField:
		return strings.Join([]string{
			string(KindField), "", "", strconv.Itoa(l.Offset), l.Symbolizer, l.Default,
		}, "\t")
	default:
		return string(l.Kind)
	}
}

func col(cols []string, i int) string {
	if i < len(cols) {
		return cols[i]
	}
	return ""
}

// splitSemicolons splits s into exactly n parts. The last part keeps any
// further semicolons, since abstracts are free text.
func splitSemicolons(s string, n int) []string {
	parts := strings.SplitN(s, ";", n)
	for len(parts) < n {
		parts = append(parts, "")
	}
	return parts
}
