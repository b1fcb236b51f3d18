package ui

import "strings"

// minBoundaryLen is the shortest text worth splitting.
const minBoundaryLen = 20

// FindSafeBoundary returns the last byte offset after from at which text can
// be cut without breaking markdown context, or -1 if there is none. A safe
// offset follows a blank line, lies outside fenced code blocks and leaves
// inline markers (**, *, _, ~~, `) balanced.
func FindSafeBoundary(text string, from int) int {
	if len(text) < minBoundaryLen || from >= len(text) {
		return -1
	}
	if from < 0 {
		from = 0
	}

	end := len(text)
	for {
		para := strings.LastIndex(text[:end], "\n\n")
		if para == -1 || para < from {
			return -1
		}
		pos := para + 2
		if !insideFence(text[:pos]) && inlineBalanced(text[:pos]) {
			return pos
		}
		end = para
	}
}

// insideFence reports whether prefix ends inside an unclosed ``` block.
func insideFence(prefix string) bool {
	fences := 0
	for line := range strings.SplitSeq(prefix, "\n") {
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "```") {
			fences++
		}
	}
	return fences%2 == 1
}

// inlineBalanced reports whether every inline marker in text is closed.
// Code spans are skipped as a unit.
func inlineBalanced(text string) bool {
	var bold, italic, underscore, strike bool

	for i := 0; i < len(text); {
		switch {
		case text[i] == '`':
			start := i
			for i < len(text) && text[i] == '`' {
				i++
			}
			run := text[start:i]
			closeAt := strings.Index(text[i:], run)
			if closeAt == -1 {
				return false
			}
			i += closeAt + len(run)
		case strings.HasPrefix(text[i:], "**"):
			bold = !bold
			i += 2
		case text[i] == '*':
			italic = !italic
			i++
		case text[i] == '_':
			underscore = !underscore
			i++
		case strings.HasPrefix(text[i:], "~~"):
			strike = !strike
			i += 2
		default:
			i++
		}
	}
	return !bold && !italic && !underscore && !strike
}
