package sse

import "strings"

// Feed appends a transport chunk to the carried buffer and splits out the
// complete lines. A chunk boundary may land mid-line, so the trailing partial
// line is returned as the new buffer and processed only once completed by a
// later chunk. Feed is pure; callers thread the remainder through themselves.
func Feed(buffer, chunk string) (lines []string, remainder string) {
	buffer += chunk
	if !strings.Contains(buffer, "\n") {
		return nil, buffer
	}
	parts := strings.Split(buffer, "\n")
	remainder = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		lines = append(lines, strings.TrimRight(line, "\r"))
	}
	return lines, remainder
}

// DataPayload extracts the payload of an SSE "data:" line. The second return
// is false for comments, event names, and blank lines.
func DataPayload(line string) (string, bool) {
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "data:")), true
}
