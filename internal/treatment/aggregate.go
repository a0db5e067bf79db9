package treatment

import (
	"sort"
	"time"
)

// Count is one row of a frequency table.
type Count struct {
	Key   string `json:"key"`
	Cases int    `json:"cases"`
	Heads int    `json:"heads"`
}

// MonthCount is the case count for one (month, diagnosis) pair.
type MonthCount struct {
	Month     string `json:"month"`
	Diagnosis string `json:"diagnosis"`
	Cases     int    `json:"cases"`
}

// Pivot is a month x diagnosis case-count matrix. Cells[i][j] counts
// Diagnoses[j] in Months[i].
type Pivot struct {
	Months    []string `json:"months"`
	Diagnoses []string `json:"diagnoses"`
	Cells     [][]int  `json:"cells"`
}

// Summary describes a cleaned record set.
type Summary struct {
	TotalCases int        `json:"total_cases"`
	TotalHeads int        `json:"total_heads"`
	Diagnoses  int        `json:"diagnoses"`
	Species    int        `json:"species"`
	Undated    int        `json:"undated_cases"`
	FirstDate  *time.Time `json:"first_date,omitempty"`
	LastDate   *time.Time `json:"last_date,omitempty"`
}

func countBy(recs []Record, key func(Record) string) []Count {
	idx := map[string]int{}
	out := []Count{}
	for _, r := range recs {
		k := key(r)
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, Count{Key: k})
		}
		out[i].Cases++
		out[i].Heads += r.HeadCount
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cases != out[j].Cases {
			return out[i].Cases > out[j].Cases
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// TopDiagnoses ranks diagnoses by case count, then name. n<=0 returns all.
func TopDiagnoses(recs []Record, n int) []Count {
	out := countBy(recs, func(r Record) string { return r.Diagnosis })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// SpeciesBreakdown counts cases and heads per species.
func SpeciesBreakdown(recs []Record) []Count {
	return countBy(recs, func(r Record) string { return r.Species })
}

// MonthlyCounts groups dated records by (month, diagnosis), ordered by month then diagnosis.
func MonthlyCounts(recs []Record) []MonthCount {
	type key struct{ month, diagnosis string }
	counts := map[key]int{}
	for _, r := range recs {
		if !r.Dated() {
			continue
		}
		counts[key{r.Month, r.Diagnosis}]++
	}
	out := make([]MonthCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, MonthCount{Month: k.month, Diagnosis: k.diagnosis, Cases: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].Diagnosis < out[j].Diagnosis
	})
	return out
}

// BuildPivot lays out the top-N diagnoses (all when topN<=0) as columns and every
// month with dated records as rows, ascending. Missing cells are zero.
func BuildPivot(recs []Record, topN int) Pivot {
	top := TopDiagnoses(recs, topN)
	p := Pivot{Months: []string{}, Diagnoses: make([]string, len(top))}
	col := make(map[string]int, len(top))
	for i, c := range top {
		p.Diagnoses[i] = c.Key
		col[c.Key] = i
	}

	row := map[string]int{}
	for _, r := range recs {
		if r.Dated() {
			row[r.Month] = 0
		}
	}
	for m := range row {
		p.Months = append(p.Months, m)
	}
	sort.Strings(p.Months)
	for i, m := range p.Months {
		row[m] = i
	}

	p.Cells = make([][]int, len(p.Months))
	for i := range p.Cells {
		p.Cells[i] = make([]int, len(p.Diagnoses))
	}
	for _, mc := range MonthlyCounts(recs) {
		j, ok := col[mc.Diagnosis]
		if !ok {
			continue
		}
		p.Cells[row[mc.Month]][j] = mc.Cases
	}
	return p
}

// Series returns the column for diagnosis, or nil if it is not in the pivot.
func (p Pivot) Series(diagnosis string) []int {
	for j, d := range p.Diagnoses {
		if d == diagnosis {
			out := make([]int, len(p.Months))
			for i := range p.Months {
				out[i] = p.Cells[i][j]
			}
			return out
		}
	}
	return nil
}

// Summarize computes headline numbers for recs.
func Summarize(recs []Record) Summary {
	s := Summary{TotalCases: len(recs)}
	diagnoses := map[string]struct{}{}
	species := map[string]struct{}{}
	var first, last time.Time
	for _, r := range recs {
		s.TotalHeads += r.HeadCount
		diagnoses[r.Diagnosis] = struct{}{}
		species[r.Species] = struct{}{}
		if !r.Dated() {
			s.Undated++
			continue
		}
		if first.IsZero() || r.Date.Before(first) {
			first = r.Date
		}
		if r.Date.After(last) {
			last = r.Date
		}
	}
	s.Diagnoses = len(diagnoses)
	s.Species = len(species)
	if !first.IsZero() {
		s.FirstDate, s.LastDate = &first, &last
	}
	return s
}
