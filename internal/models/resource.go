package models

import (
	"fmt"
	"strings"

	"github.com/kelsos/cvat-cli/internal/apierr"
)

// ResourceType selects how task data is attached to a task
type ResourceType int

const (
	// ResourceLocal uploads local files as multipart parts
	ResourceLocal ResourceType = iota
	// ResourceShare references paths on the server's shared storage
	ResourceShare
	// ResourceRemote references URLs the server downloads itself
	ResourceRemote
)

var resourceTypeNames = map[ResourceType]string{
	ResourceLocal:  "local",
	ResourceShare:  "share",
	ResourceRemote: "remote",
}

// ResourceTypes lists every variant in declaration order
func ResourceTypes() []ResourceType {
	return []ResourceType{ResourceLocal, ResourceShare, ResourceRemote}
}

func (r ResourceType) String() string {
	if name, ok := resourceTypeNames[r]; ok {
		return name
	}
	return fmt.Sprintf("ResourceType(%d)", int(r))
}

// ParseResourceType parses a resource type name, ignoring case
func ParseResourceType(s string) (ResourceType, error) {
	wanted := strings.ToLower(strings.TrimSpace(s))
	for _, r := range ResourceTypes() {
		if resourceTypeNames[r] == wanted {
			return r, nil
		}
	}
	return 0, &apierr.ValidationError{
		Field:  "resource type",
		Value:  s,
		Reason: "expected one of local, share, remote",
	}
}

// FieldPrefix returns the form field used for this variant on POST /tasks/{id}/data
func (r ResourceType) FieldPrefix() string {
	switch r {
	case ResourceLocal:
		return "client_files"
	case ResourceShare:
		return "server_files"
	case ResourceRemote:
		return "remote_files"
	default:
		return ""
	}
}

func (r ResourceType) MarshalText() ([]byte, error) {
	if _, ok := resourceTypeNames[r]; !ok {
		return nil, fmt.Errorf("unknown resource type %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *ResourceType) UnmarshalText(text []byte) error {
	parsed, err := ParseResourceType(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Set implements pflag.Value
func (r *ResourceType) Set(s string) error {
	return r.UnmarshalText([]byte(s))
}

// Type implements pflag.Value
func (r *ResourceType) Type() string {
	return "resourceType"
}
