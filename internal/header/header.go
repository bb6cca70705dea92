package header

import (
	"bytes"
	"strconv"
	"strings"
)

// Index maps header names, as received, to their trimmed values. A repeated
// name keeps the last value seen.
type Index map[string]string

// Parse builds an Index from a raw header block. Malformed lines are dropped.
func Parse(raw []byte) Index {
	idx := make(Index)
	for _, line := range bytes.Split(raw, []byte("\n")) {
		text := strings.TrimSpace(string(line))
		if text == "" {
			continue
		}
		name, value, found := strings.Cut(text, ":")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		idx[name] = strings.TrimSpace(value)
	}
	return idx
}

func (idx Index) Get(name string) (string, bool) {
	v, ok := idx[name]
	return v, ok
}

// ContentLength returns the declared Content-Length, or false when it is
// missing or not a non-negative integer.
func ContentLength(idx Index) (int64, bool) {
	v, ok := idx["Content-Length"]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ContentRangeTotal returns the complete length from a
// "Content-Range: bytes start-end/total" header. An unknown total ("*")
// reports false.
func ContentRangeTotal(idx Index) (int64, bool) {
	v, ok := idx["Content-Range"]
	if !ok {
		return 0, false
	}
	_, total, found := strings.Cut(strings.TrimPrefix(v, "bytes "), "/")
	if !found || total == "*" {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(total), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// StatusCode returns the code of the last status line ("HTTP/1.1 206 ...")
// in a raw header block, or 0 when there is none. The last one wins because
// interim responses and redirects each contribute their own block.
func StatusCode(raw []byte) int {
	code := 0
	for _, line := range bytes.Split(raw, []byte("\n")) {
		fields := strings.Fields(string(line))
		if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") {
			continue
		}
		if n, err := strconv.Atoi(fields[1]); err == nil {
			code = n
		}
	}
	return code
}
