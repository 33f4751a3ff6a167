package domain

import (
	"fmt"
	"strings"
)

// MaxPageSize caps the page size a selector may request.
const MaxPageSize = 500

// ImportSelector describes which subset of a provider's content to import.
// It is supplied per import run and never persisted.
type ImportSelector struct {
	// Kind is the type of item to import.
	Kind ItemKind `json:"kind"`

	// LabelIDs selects mail by provider-native label identifiers.
	LabelIDs []string `json:"label_ids,omitempty"`
	// LabelNames selects mail by display name. Resolved to IDs by the provider client.
	LabelNames []string `json:"label_names,omitempty"`
	// Query is an optional provider search expression for mail.
	Query string `json:"query,omitempty"`

	// ProfileID selects a social timeline. Empty means the connected account's own profile.
	ProfileID string `json:"profile_id,omitempty"`

	// FolderID selects a file-storage folder. Empty means the root folder.
	FolderID string `json:"folder_id,omitempty"`

	// PageSize is the number of identifiers requested per page. Zero uses the provider default.
	PageSize int `json:"page_size,omitempty"`
}

// Capability returns the capability an import with this selector requires.
func (s ImportSelector) Capability() Capability {
	return CapabilityFor(s.Kind)
}

// Problems lists everything wrong with the selector. Each problem wraps
// ErrInvalidSelector. An empty result means the selector is valid.
func (s ImportSelector) Problems() []error {
	var problems []error
	switch s.Kind {
	case ItemKindEmail:
		if len(s.LabelIDs) == 0 && len(s.LabelNames) == 0 && strings.TrimSpace(s.Query) == "" {
			problems = append(problems, fmt.Errorf("%w: email import needs a label or a query", ErrInvalidSelector))
		}
		if s.ProfileID != "" || s.FolderID != "" {
			problems = append(problems, fmt.Errorf("%w: email import does not take a profile or folder", ErrInvalidSelector))
		}
	case ItemKindTweet:
		if len(s.LabelIDs) > 0 || len(s.LabelNames) > 0 || s.FolderID != "" {
			problems = append(problems, fmt.Errorf("%w: timeline import only takes a profile", ErrInvalidSelector))
		}
	case ItemKindDriveFile:
		if len(s.LabelIDs) > 0 || len(s.LabelNames) > 0 || s.ProfileID != "" {
			problems = append(problems, fmt.Errorf("%w: file import only takes a folder", ErrInvalidSelector))
		}
	case "":
		problems = append(problems, fmt.Errorf("%w: kind is required", ErrInvalidSelector))
	default:
		problems = append(problems, fmt.Errorf("%w: unknown kind %q", ErrInvalidSelector, s.Kind))
	}
	if s.PageSize < 0 || s.PageSize > MaxPageSize {
		problems = append(problems, fmt.Errorf("%w: page size must be between 0 and %d", ErrInvalidSelector, MaxPageSize))
	}
	return problems
}

// String renders the selector for logs and reports.
func (s ImportSelector) String() string {
	var parts []string
	if len(s.LabelNames) > 0 {
		parts = append(parts, "labels="+strings.Join(s.LabelNames, ","))
	}
	if len(s.LabelIDs) > 0 {
		parts = append(parts, "label_ids="+strings.Join(s.LabelIDs, ","))
	}
	if s.Query != "" {
		parts = append(parts, "query="+s.Query)
	}
	if s.ProfileID != "" {
		parts = append(parts, "profile="+s.ProfileID)
	}
	if s.FolderID != "" {
		parts = append(parts, "folder="+s.FolderID)
	}
	return fmt.Sprintf("%s{%s}", s.Kind, strings.Join(parts, " "))
}
