package drive

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// RootFolderID is the Drive alias for the user's root folder.
const RootFolderID = "root"

// DefaultMaxResults is the page size used when the selector leaves it unset.
const DefaultMaxResults = 100

// Config holds the Drive listing parameters for one import run.
type Config struct {
	// FolderID is the folder whose direct children are listed.
	FolderID string
	// MaxResults is the page size for API requests.
	MaxResults int64
}

// ConfigFromSelector builds listing parameters from a selector.
func ConfigFromSelector(sel domain.ImportSelector) *Config {
	cfg := &Config{FolderID: RootFolderID, MaxResults: DefaultMaxResults}
	if sel.FolderID != "" {
		cfg.FolderID = sel.FolderID
	}
	if sel.PageSize > 0 {
		cfg.MaxResults = int64(sel.PageSize)
	}
	return cfg
}

// Query returns the files.list search expression: non-trashed files that are
// direct children of the folder, excluding subfolders.
func (c *Config) Query() string {
	return fmt.Sprintf("'%s' in parents and trashed = false and mimeType != '%s'",
		escapeQuery(c.FolderID), MimeTypeFolder)
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, "'", `\'`).Replace(s)
}
