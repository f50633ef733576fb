// Package sse frames and streams server-sent events and parses them on the
// client side.
package sse

import (
	"bufio"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// Time between keepalive comments
	pingPeriod = 30 * time.Second
)

// Event is a single server-sent event
type Event struct {
	Name string
	Data string
}

// FormatMessage formats an SSE message with event name and data.
// Multi-line data is split so each line carries its own "data: " prefix.
func FormatMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(eventName)
	b.WriteString("\n")
	for _, line := range splitLines(data) {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// splitLines splits a string into lines, handling various line endings
func splitLines(s string) []string {
	var lines []string
	var current strings.Builder
	for _, r := range s {
		if r == '\n' {
			lines = append(lines, current.String())
			current.Reset()
		} else if r != '\r' {
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	if len(lines) == 0 {
		lines = append(lines, "")
	}
	return lines
}

// Serve streams events to the client until the request is cancelled or the
// events channel is closed. initial events are written first.
func Serve(w http.ResponseWriter, r *http.Request, events <-chan Event, initial ...Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	for _, e := range initial {
		if _, err := w.Write(FormatMessage(e.Name, e.Data)); err != nil {
			return
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if _, err := w.Write(FormatMessage(e.Name, e.Data)); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// Reader parses an SSE stream
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader creates a Reader over a response body
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: scanner}
}

// Next returns the next complete event. Comments and events without a name
// are skipped. io.EOF is returned when the stream ends.
func (r *Reader) Next() (Event, error) {
	var current string
	var dataLines []string

	for r.scanner.Scan() {
		line := r.scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			current = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			if current != "" {
				return Event{Name: current, Data: strings.Join(dataLines, "\n")}, nil
			}
			current = ""
			dataLines = nil
		}
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}
