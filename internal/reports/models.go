package reports

import (
	"time"

	"simflow/portal-backend/internal/reports/export"
)

// ExportConfig controls where rendered exports go. With an empty bucket the
// file is returned inline.
type ExportConfig struct {
	Bucket     string
	Prefix     string
	PresignTTL time.Duration
}

// ExportResult is either an inline file (Data) or a stored object (URL).
type ExportResult struct {
	FileName    string        `json:"file_name"`
	Format      export.Format `json:"format"`
	ContentType string        `json:"content_type"`
	Rows        int           `json:"rows"`
	Key         string        `json:"key,omitempty"`
	URL         string        `json:"url,omitempty"`
	ExpiresAt   *time.Time    `json:"expires_at,omitempty"`
	Data        []byte        `json:"-"`
}

// Stored reports whether the export was uploaded.
func (r *ExportResult) Stored() bool {
	return r.URL != ""
}

var ledgerColumns = []string{
	"Date", "Type", "Hours", "Used Before", "Used After",
	"Total Before", "Total After", "Request", "Actor", "Note",
}
