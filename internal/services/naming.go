package services

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/kelsos/cvat-cli/internal/apierr"
)

var videoExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
}

// IsVideoResource reports whether resource has a recognised video container extension
func IsVideoResource(resource string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(resource))]
}

// ResourceStem returns the file name of resource without its extension
func ResourceStem(resource string) string {
	base := filepath.Base(resource)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var placeholderPattern = regexp.MustCompile(`\{([^{}]*)\}`)

var templateFields = map[string]bool{
	"name_part1": true,
	"name_part2": true,
	"name":       true,
	"id":         true,
}

// DumpTemplate expands dump file name templates such as
// "./annotations/{name_part1}/{name}_{id}.xml".
type DumpTemplate struct {
	raw       string
	usesParts int
}

// ParseDumpTemplate validates the placeholders of a dump file name template
func ParseDumpTemplate(raw string) (DumpTemplate, error) {
	if strings.TrimSpace(raw) == "" {
		return DumpTemplate{}, &apierr.ValidationError{Field: "filename template", Reason: "cannot be empty"}
	}

	t := DumpTemplate{raw: raw}
	for _, match := range placeholderPattern.FindAllStringSubmatch(raw, -1) {
		field := match[1]
		if !templateFields[field] {
			return DumpTemplate{}, &apierr.ValidationError{
				Field:  "filename template",
				Value:  raw,
				Reason: "unknown placeholder {" + field + "}, expected {name_part1}, {name_part2}, {name} or {id}",
			}
		}
		switch field {
		case "name_part1":
			t.usesParts = max(t.usesParts, 1)
		case "name_part2":
			t.usesParts = max(t.usesParts, 2)
		}
	}
	return t, nil
}

// Expand fills the template for a task. ok is false when the template needs
// more name parts than splitting name on separator yields.
func (t DumpTemplate) Expand(taskID int, name, separator string) (string, bool) {
	parts := []string{name}
	if separator != "" {
		parts = strings.SplitN(name, separator, 3)
	}
	if len(parts) < t.usesParts {
		return "", false
	}
	parts = append(parts, "", "")

	replacer := strings.NewReplacer(
		"{name_part1}", parts[0],
		"{name_part2}", parts[1],
		"{name}", name,
		"{id}", strconv.Itoa(taskID),
	)
	return replacer.Replace(t.raw), true
}

func (t DumpTemplate) String() string {
	return t.raw
}
