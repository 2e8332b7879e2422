package filesystem

import "time"

// DefaultPattern matches every notebook below a root
const DefaultPattern = "**/*.ipynb"

// Notebook describes one notebook file found under a root
type Notebook struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	RelativePath string    `json:"relative_path"`
	Size         int64     `json:"size"`
	Modified     time.Time `json:"modified"`
	// MimeType is set when content inspection is enabled
	MimeType string `json:"mime_type,omitempty"`
}

// FindOptions controls notebook discovery
type FindOptions struct {
	// Pattern is a doublestar glob matched against the forward-slash
	// relative path; empty means DefaultPattern
	Pattern string
	// IncludeHidden lists dot files and descends into dot directories
	IncludeHidden bool
	// Inspect sniffs file content and drops files that are not JSON
	Inspect bool
	// Limit keeps the first results by relative path; zero means no limit
	Limit int
}
