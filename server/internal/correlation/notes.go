package correlation

import "fmt"

// Note is one human-readable remark about a correlation result. Notes tell
// the reader whether the readings came from the historian, from the
// simulator, or are missing.
type Note struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical".
	Level string `json:"level"`
	// Title is a short label.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
}

// notes derives notes from a summary, most severe first.
func notes(s Summary) []Note {
	if s.Windows == 0 {
		return []Note{{
			Key:    "no_batches",
			Level:  "info",
			Title:  "No matching batches",
			Detail: "The batch registry has no batch matching this selector, so there is nothing to correlate.",
		}}
	}

	var out []Note
	queries := 2 * s.Windows
	readings := s.PHReadings + s.TCCReadings

	switch {
	case s.FailedQueries == queries:
		out = append(out, Note{
			Key:   "all_failed",
			Level: "critical",
			Title: "No signal data",
			Detail: fmt.Sprintf(
				"All %d signal queries failed. Check the historian status and the "+
					"lot ids of the selected batches.", queries),
		})
	case s.FailedQueries > 0:
		out = append(out, Note{
			Key:   "partial_failure",
			Level: "warning",
			Title: fmt.Sprintf("%d of %d queries failed", s.FailedQueries, queries),
			Detail: "Some windows are missing pH or TCC data. The per-batch outcomes " +
				"carry the error for each failed signal.",
		})
	}

	if s.SyntheticReadings > 0 {
		title := "Synthetic data"
		if s.SyntheticReadings < readings {
			title = "Partly synthetic data"
		}
		out = append(out, Note{
			Key:   "synthetic",
			Level: "warning",
			Title: title,
			Detail: fmt.Sprintf(
				"%d of %d readings were generated by the fallback simulator because "+
					"the historian was unreachable. Do not use them for release decisions.",
				s.SyntheticReadings, readings),
		})
	}

	if s.FailedQueries < queries && readings == 0 {
		out = append(out, Note{
			Key:    "empty_windows",
			Level:  "info",
			Title:  "No readings recorded",
			Detail: "The historian returned no pH or TCC samples within the selected batch windows.",
		})
	}

	if len(out) == 0 {
		out = append(out, Note{
			Key:    "historian_data",
			Level:  "ok",
			Title:  "Historian data",
			Detail: fmt.Sprintf("All %d readings came from the historian.", readings),
		})
	}

	if s.OpenWindows > 0 {
		out = append(out, Note{
			Key:   "open_batches",
			Level: "info",
			Title: fmt.Sprintf("%d open batch(es)", s.OpenWindows),
			Detail: "Open batches are read up to the time of the request; repeating the " +
				"request returns more data as the batch runs.",
		})
	}
	return out
}
