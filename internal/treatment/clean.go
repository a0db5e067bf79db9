package treatment

import "sort"

// CleanReport accounts for every input row.
type CleanReport struct {
	InputRows       int            `json:"input_rows"`
	DroppedBlank    int            `json:"dropped_blank_diagnosis"`
	DroppedSentinel int            `json:"dropped_not_sick"`
	DroppedRare     int            `json:"dropped_rare_class"`
	RareClasses     map[string]int `json:"rare_classes,omitempty"`
	KeptRows        int            `json:"kept_rows"`
	KeptClasses     int            `json:"kept_classes"`
	UndatedKept     int            `json:"undated_kept"`
	MinClassCount   int            `json:"min_class_count"`
}

// Clean extracts every raw record and applies the diagnosis filters in order:
// blank diagnosis, "not sick" sentinel, then classes under MinClassCount.
func (r *Rules) Clean(raws []RawRecord) ([]Record, CleanReport) {
	rep := CleanReport{InputRows: len(raws), MinClassCount: r.MinClassCount}

	candidates := make([]Record, 0, len(raws))
	counts := map[string]int{}
	for _, raw := range raws {
		rec := r.Extract(raw)
		switch {
		case rec.Diagnosis == "":
			rep.DroppedBlank++
		case r.IsSentinel(rec.Diagnosis):
			rep.DroppedSentinel++
		default:
			candidates = append(candidates, rec)
			counts[rec.Diagnosis]++
		}
	}

	kept := candidates[:0]
	for _, rec := range candidates {
		if counts[rec.Diagnosis] < r.MinClassCount {
			rep.DroppedRare++
			continue
		}
		kept = append(kept, rec)
		if !rec.Dated() {
			rep.UndatedKept++
		}
	}

	for name, n := range counts {
		if n < r.MinClassCount {
			if rep.RareClasses == nil {
				rep.RareClasses = map[string]int{}
			}
			rep.RareClasses[name] = n
		} else {
			rep.KeptClasses++
		}
	}
	rep.KeptRows = len(kept)
	return kept, rep
}

// Classes returns the distinct diagnoses in recs, sorted.
func Classes(recs []Record) []string {
	seen := map[string]struct{}{}
	for _, r := range recs {
		seen[r.Diagnosis] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
