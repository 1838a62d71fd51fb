package scorer

import "strings"

// Repair normalizes near-JSON oracle output into parseable JSON. Models asked
// for strict JSON still wrap it in markdown fences, preface it with prose,
// emit raw newlines inside string values, leave trailing commas, or truncate
// the tail when they hit the token limit. Each pass handles one failure shape
// and is a no-op on already-valid input.
func Repair(text string) string {
	text = stripFences(text)
	text = sliceObject(text)
	text = escapeControlChars(text)
	text = stripTrailingCommas(text)
	text = balanceBrackets(text)
	return text
}

// stripFences removes a surrounding markdown code fence.
func stripFences(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}

// sliceObject trims leading and trailing prose around the outermost object.
func sliceObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

// escapeControlChars replaces raw control characters inside string literals
// with their JSON escape sequences.
func escapeControlChars(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))

	inString := false
	escape := false
	for i := 0; i < len(text); i++ {
		c := text[i]

		if escape {
			escape = false
			sb.WriteByte(c)
			continue
		}
		if c == '\\' && inString {
			escape = true
			sb.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = !inString
			sb.WriteByte(c)
			continue
		}

		if inString && c < 0x20 {
			switch c {
			case '\n':
				sb.WriteString(`\n`)
			case '\r':
				sb.WriteString(`\r`)
			case '\t':
				sb.WriteString(`\t`)
			}
			// Other control characters are dropped.
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// stripTrailingCommas removes commas that directly precede a closing brace
// or bracket.
func stripTrailingCommas(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))

	inString := false
	escape := false
	for i := 0; i < len(text); i++ {
		c := text[i]

		if escape {
			escape = false
			sb.WriteByte(c)
			continue
		}
		if c == '\\' && inString {
			escape = true
			sb.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = !inString
			sb.WriteByte(c)
			continue
		}

		if !inString && c == ',' {
			j := i + 1
			for j < len(text) && (text[j] == ' ' || text[j] == '\t' || text[j] == '\n' || text[j] == '\r') {
				j++
			}
			if j < len(text) && (text[j] == '}' || text[j] == ']') {
				continue // drop the comma
			}
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// balanceBrackets closes an unterminated string and any unclosed braces or
// brackets left by output truncation.
func balanceBrackets(text string) string {
	if len(text) == 0 {
		return text
	}

	var stack []byte
	inString := false
	escape := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if escape {
			escape = false
			continue
		}
		if c == '\\' && inString {
			escape = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if inString {
		text += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		text = strings.TrimRight(text, " \t\n\r,")
		text += string(stack[i])
	}
	return text
}
