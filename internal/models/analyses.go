package models

// ReportsOf returns analyses.reports. ok is false when the key holds
// something other than a sequence.
func ReportsOf(analyses map[string]any) (reports []any, ok bool) {
	v, present := analyses["reports"]
	if !present || v == nil {
		return []any{}, true
	}
	seq, isSeq := v.([]any)
	if !isSeq {
		return []any{}, false
	}
	return seq, true
}

// LastReportOf returns analyses.last_report when it is an object.
func LastReportOf(analyses map[string]any) (map[string]any, bool) {
	m, ok := analyses["last_report"].(map[string]any)
	return m, ok
}

// PruneAnalyses drops everything except reports and last_report. Without
// either of them the result is empty.
func PruneAnalyses(analyses map[string]any) map[string]any {
	reports, _ := ReportsOf(analyses)
	last, hasLast := analyses["last_report"]
	if len(reports) == 0 && (!hasLast || last == nil) {
		return map[string]any{}
	}
	return map[string]any{
		"reports":     DeepCopy(reports),
		"last_report": DeepCopy(last),
	}
}
