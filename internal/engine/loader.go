package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pynezz/heimdall/internal/util"
)

// Format is the on-disk layout of a log source.
type Format string

const (
	// FormatCloudTrail is the wrapped-array layout: a root object with a
	// "Records" array holding the events (cloud audit-log export style).
	FormatCloudTrail Format = "cloudtrail"

	// FormatFlatJSON is either one JSON object per file, or newline-delimited
	// JSON objects.
	FormatFlatJSON Format = "flatjson"

	// FormatUnknown means the caller wants auto-detection.
	FormatUnknown Format = ""
)

// LoadError reports a log source that could not be turned into events:
// missing, unreadable, unparsable, or empty after line filtering.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("load %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }

// DetectFormat parses the whole source as JSON and picks the format: a root
// object with a "Records" array is FormatCloudTrail, anything else that
// parses is FormatFlatJSON.
func DetectFormat(path string) (Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FormatUnknown, &LoadError{Path: path, Reason: "cannot read log file", Err: err}
	}

	var root interface{}
	if err := json.Unmarshal(data, &root); err != nil {
		return FormatUnknown, &LoadError{Path: path, Reason: "cannot parse JSON", Err: err}
	}

	if obj, ok := root.(map[string]interface{}); ok {
		if _, ok := obj["Records"].([]interface{}); ok {
			return FormatCloudTrail, nil
		}
	}
	return FormatFlatJSON, nil
}

// LoadEvents reads the whole source into memory and returns its events in
// file order. No deduplication, no mutation of the source.
func LoadEvents(path string, format Format) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "cannot read log file", Err: err}
	}

	switch format {
	case FormatCloudTrail:
		return loadWrapped(path, data)
	case FormatFlatJSON:
		return loadFlat(path, data)
	default:
		return nil, &LoadError{Path: path, Reason: fmt.Sprintf("unknown log format %q", string(format))}
	}
}

// loadWrapped parses the source as a single object and extracts the
// "Records" array.
func loadWrapped(path string, data []byte) ([]Event, error) {
	root := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, &LoadError{Path: path, Reason: "cannot parse JSON", Err: err}
	}

	raw, ok := root["Records"]
	if !ok {
		return nil, &LoadError{Path: path, Reason: "wrapped-array file must have a 'Records' array"}
	}

	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &LoadError{Path: path, Reason: "'Records' is not an array", Err: err}
	}

	events := make([]Event, 0, len(records))
	for _, rec := range records {
		ev, err := decodeEvent(rec)
		if err != nil {
			return nil, &LoadError{Path: path, Reason: "'Records' entry is not an object", Err: err}
		}
		events = append(events, ev)
	}
	return events, nil
}

// loadFlat first tries the whole source as one JSON object, then falls back
// to newline-delimited JSON. Lines that fail to parse are dropped with a
// warning; the load only fails when no line survives.
func loadFlat(path string, data []byte) ([]Event, error) {
	var probe interface{}
	if err := json.Unmarshal(data, &probe); err == nil {
		if _, ok := probe.(map[string]interface{}); ok {
			ev, err := decodeEvent(data)
			if err != nil {
				return nil, &LoadError{Path: path, Reason: "cannot parse JSON", Err: err}
			}
			return []Event{ev}, nil
		}
	}

	var events []Event
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		ev, err := decodeEvent([]byte(line))
		if err != nil {
			util.PrintWarningf("dropping unparsable line in %s: %v", path, err)
			continue
		}
		events = append(events, ev)
	}

	if len(events) == 0 {
		return nil, &LoadError{Path: path, Reason: "no valid JSON objects found in file"}
	}
	return events, nil
}

// decodeEvent unmarshals one JSON object. Numbers stay as json.Number so the
// comparison text matches the source literal.
func decodeEvent(data []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var ev Event
	if err := dec.Decode(&ev); err != nil {
		return nil, err
	}
	return ev, nil
}
