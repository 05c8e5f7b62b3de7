package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ReadAll decodes every line of the trace at path. Malformed lines are
// skipped. A missing file yields no events.
func ReadAll(path string) ([]Event, error) {
	indexed, _, err := ReadFrom(path, 0)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(indexed))
	for _, ie := range indexed {
		events = append(events, ie.Event)
	}
	return events, nil
}

// ReadFrom decodes complete lines starting at line index since. It returns
// the decoded events tagged with their line index and the index of the next
// unread line. A trailing line without a newline is treated as still being
// written and is not consumed.
func ReadFrom(path string, since int) ([]Indexed, int, error) {
	if since < 0 {
		since = 0
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, since, nil
	}
	if err != nil {
		return nil, since, fmt.Errorf("read trace: %w", err)
	}

	var out []Indexed
	idx := 0
	for len(data) > 0 {
		nl := bytes.IndexByte(data, '\n')
		if nl < 0 {
			break
		}
		line := bytes.TrimSpace(data[:nl])
		data = data[nl+1:]
		if idx >= since && len(line) > 0 {
			var evt Event
			if err := json.Unmarshal(line, &evt); err == nil {
				out = append(out, Indexed{Index: idx, Event: evt})
			}
		}
		idx++
	}
	if idx < since {
		idx = since
	}
	return out, idx, nil
}

// Filter returns the events of the given type, in order.
func Filter(events []Event, eventType string) []Event {
	var out []Event
	for _, e := range events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
