package models

// HistoryShape identifies the layout an allHistory value was stored in.
type HistoryShape int

const (
	HistoryEmpty HistoryShape = iota
	HistorySequence
	HistoryWrappedAnalyses
	HistoryWrappedHistory
	HistoryUnknown
)

func (s HistoryShape) String() string {
	switch s {
	case HistoryEmpty:
		return "empty"
	case HistorySequence:
		return "sequence"
	case HistoryWrappedAnalyses:
		return "wrapped-analyses"
	case HistoryWrappedHistory:
		return "wrapped-history"
	default:
		return "unknown"
	}
}

// NormalizeHistory unwraps every known allHistory layout into a plain
// sequence. HistoryUnknown values normalize to an empty sequence.
func NormalizeHistory(v any) ([]any, HistoryShape) {
	switch t := v.(type) {
	case nil:
		return []any{}, HistoryEmpty
	case []any:
		return t, HistorySequence
	case map[string]any:
		if len(t) == 0 {
			return []any{}, HistoryEmpty
		}
		if seq, ok := t["analyses"].([]any); ok {
			return seq, HistoryWrappedAnalyses
		}
		if seq, ok := t["history"].([]any); ok {
			return seq, HistoryWrappedHistory
		}
	}
	return []any{}, HistoryUnknown
}

// IsWholeAnalyses recognizes a legacy history entry that stored a full
// analyses object instead of a single report.
func IsWholeAnalyses(entry any) bool {
	m, ok := entry.(map[string]any)
	if !ok {
		return false
	}
	_, hasReports := m["reports"]
	_, hasLast := m["last_report"]
	return hasReports && hasLast
}

// AppendHistory appends r unless an entry already records the same event
// (see Report.SameEvent). A legacy whole-analyses tail is dropped first.
// It reports whether r was appended.
func AppendHistory(history []any, r Report) ([]any, bool) {
	if n := len(history); n > 0 && IsWholeAnalyses(history[n-1]) {
		history = history[:n-1]
	}
	for _, entry := range history {
		m, ok := entry.(map[string]any)
		if !ok || IsWholeAnalyses(m) {
			continue
		}
		if ReportFromMap(m).SameEvent(r) {
			return history, false
		}
	}
	return append(history, r.ToMap()), true
}

// FindHistoryEntry returns the index of the entry matching updated on
// (fileName, createdAt), or else the entry whose text equals previousText.
// It returns -1 when nothing matches.
func FindHistoryEntry(history []any, updated Report, previousText string) int {
	if updated.CreatedAt != "" {
		for i, entry := range history {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			r := ReportFromMap(m)
			if r.CreatedAt != "" && r.SameEvent(updated) {
				return i
			}
		}
	}
	if previousText == "" {
		return -1
	}
	for i := len(history) - 1; i >= 0; i-- {
		m, ok := history[i].(map[string]any)
		if !ok {
			continue
		}
		if ReportFromMap(m).Text == previousText {
			return i
		}
	}
	return -1
}
