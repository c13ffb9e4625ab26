// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package plan

import (
	"encoding/json"
	"strings"
)

// document is the wire shape of a (possibly truncated) planner response.
type document struct {
	Nodes []documentNode `json:"nodes"`
	Edges []documentEdge `json:"edges"`
}

type documentNode struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Context string `json:"context"`
}

type documentEdge struct {
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
}

// parseDocument parses a possibly truncated planner buffer.
//
// Description:
//
//	Strips any markdown code fence, locates the outermost JSON object,
//	and parses it. If the buffer is cut off mid-stream the parser closes
//	open strings and brackets; when that still does not produce valid
//	JSON it discards the trailing partial element and tries again, so the
//	valid prefix of the stream is always usable.
//
// Outputs:
//
//	document - The parsed prefix. Zero value when ok is false.
//	bool - False when no parseable prefix exists yet. Never an error:
//	       mid-stream garbage is expected, not exceptional.
func parseDocument(buf string) (document, bool) {
	text := stripFence(buf)

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return document{}, false
	}
	text = text[start:]

	var doc document
	if json.Unmarshal([]byte(text), &doc) == nil {
		return doc, true
	}

	completed, ok := completeTruncated(text)
	if !ok {
		return document{}, false
	}
	if err := json.Unmarshal([]byte(completed), &doc); err != nil {
		return document{}, false
	}
	return doc, true
}

// stripFence removes a leading markdown code fence and, when present, the
// matching trailing fence. Planner models wrap JSON in fences despite
// instructions often enough that tolerating it is cheaper than reprompting.
func stripFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 {
		trimmed = trimmed[nl+1:]
	} else {
		return ""
	}
	if end := strings.LastIndex(trimmed, "```"); end >= 0 {
		trimmed = trimmed[:end]
	}
	return trimmed
}

// completeTruncated attempts to turn a truncated JSON prefix into a valid
// document by closing open delimiters, backing off past the trailing
// partial element when closing alone is not enough.
func completeTruncated(s string) (string, bool) {
	for attempts := 0; attempts < 64; attempts++ {
		if s == "" {
			return "", false
		}
		candidate := closeDelimiters(s)
		if candidate != "" && json.Valid([]byte(candidate)) {
			return candidate, true
		}

		// Discard the trailing partial element: cut back to the last
		// element separator or container opener and retry.
		i := strings.LastIndexAny(s, ",[{")
		if i < 0 {
			return "", false
		}
		if s[i] == ',' {
			s = s[:i]
		} else {
			s = s[:i+1]
		}
	}
	return "", false
}

// closeDelimiters appends the quotes and brackets needed to balance a
// truncated JSON prefix. Returns "" when the prefix cannot be balanced
// (for example, it ends inside an escape sequence).
func closeDelimiters(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 {
				return ""
			}
			stack = stack[:len(stack)-1]
		}
	}

	if escaped {
		// Ends mid escape sequence; drop the dangling backslash.
		s = s[:len(s)-1]
	}

	var sb strings.Builder
	sb.WriteString(s)
	if inString {
		sb.WriteByte('"')
	}

	// A trailing separator would make the closed form invalid.
	out := strings.TrimRight(sb.String(), " \t\r\n")
	out = strings.TrimSuffix(out, ",")
	if strings.HasSuffix(out, ":") {
		out += "null"
	}

	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			out += "}"
		} else {
			out += "]"
		}
	}
	return out
}
