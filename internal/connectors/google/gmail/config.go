package gmail

import (
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// DefaultMaxResults is the page size used when the selector leaves it unset.
const DefaultMaxResults = 100

// Config holds the Gmail listing parameters for one import run.
type Config struct {
	// LabelIDs limits listing to messages carrying all of these labels.
	LabelIDs []string
	// Query is a Gmail search query (optional).
	Query string
	// MaxResults is the page size for API requests.
	MaxResults int64
	// IncludeSpamTrash includes spam and trash if true.
	IncludeSpamTrash bool
}

// ConfigFromSelector builds listing parameters from a resolved selector.
// Label names must already be resolved to IDs.
func ConfigFromSelector(sel domain.ImportSelector) *Config {
	cfg := &Config{
		LabelIDs:   sel.LabelIDs,
		Query:      sel.Query,
		MaxResults: DefaultMaxResults,
	}
	if sel.PageSize > 0 {
		cfg.MaxResults = int64(sel.PageSize)
	}
	return cfg
}
