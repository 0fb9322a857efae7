package utils

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ParseJSONArg interprets s as a file path when such a file exists and as a
// JSON literal otherwise. A file that is not JSON is read as a list of lines.
func ParseJSONArg(s string) (json.RawMessage, error) {
	info, err := os.Stat(s)
	if err != nil || info.IsDir() {
		if !json.Valid([]byte(s)) {
			return nil, fmt.Errorf("argument is neither an existing file nor valid JSON: %q", s)
		}
		return json.RawMessage(s), nil
	}

	data, err := os.ReadFile(s)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s, err)
	}

	if json.Valid(data) {
		return json.RawMessage(bytes.TrimSpace(data)), nil
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lines of %s: %w", s, err)
	}

	encoded, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("failed to encode lines of %s: %w", s, err)
	}
	return encoded, nil
}

// ParseStringListArg parses a JSON-or-file argument that must hold a list of strings
func ParseStringListArg(s string) ([]string, error) {
	raw, err := ParseJSONArg(s)
	if err != nil {
		return nil, err
	}

	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("expected a JSON list of strings: %w", err)
	}

	result := make([]string, 0, len(items))
	for _, item := range items {
		if item != "" {
			result = append(result, item)
		}
	}
	return result, nil
}
