package models

import "time"

const UnknownFileName = "unknown"

// Report is one ingested analysis document.
type Report struct {
	Text      string `json:"text"`
	FileName  string `json:"fileName"`
	CreatedAt string `json:"createdAt"`
}

// NewReport fills fileName and createdAt defaults. createdAt defaults to now
// in UTC, RFC 3339 with second precision.
func NewReport(text, fileName, createdAt string, now time.Time) Report {
	if fileName == "" {
		fileName = UnknownFileName
	}
	if createdAt == "" {
		createdAt = now.UTC().Format(time.RFC3339)
	}
	return Report{Text: text, FileName: fileName, CreatedAt: createdAt}
}

// ReportFromMap reads a stored report. Older entries used "report" for the
// text and "created_at" for the timestamp.
func ReportFromMap(m map[string]any) Report {
	return Report{
		Text:      stringField(m, "text", "report"),
		FileName:  stringField(m, "fileName"),
		CreatedAt: stringField(m, "createdAt", "created_at"),
	}
}

func (r Report) ToMap() map[string]any {
	return map[string]any{
		"text":      r.Text,
		"fileName":  r.FileName,
		"createdAt": r.CreatedAt,
	}
}

// SameEvent matches on (fileName, createdAt) when both sides carry a
// timestamp, and on text otherwise.
func (r Report) SameEvent(other Report) bool {
	if r.CreatedAt != "" && other.CreatedAt != "" {
		return r.FileName == other.FileName && r.CreatedAt == other.CreatedAt
	}
	return r.Text != "" && r.Text == other.Text
}
