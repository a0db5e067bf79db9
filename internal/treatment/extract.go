package treatment

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RawRecord is one treatment-log row before extraction.
type RawRecord struct {
	Source    string
	Line      int
	Date      string
	Diagnosis string
	Dosage    string
	Symptoms  string
	Species   string
}

// Record is a cleaned case.
type Record struct {
	Date      time.Time `json:"date"`
	Year      int       `json:"year"`
	Month     string    `json:"month"`
	Species   string    `json:"species"`
	HeadCount int       `json:"head_count"`
	Diagnosis string    `json:"diagnosis"`
	Symptoms  string    `json:"symptoms"`
}

// Dated reports whether the record carries a calendar month.
func (r Record) Dated() bool {
	return r.Month != ""
}

var (
	dayFirstDate = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4})\b`)
	isoDate      = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)

	indonesianMonths = strings.NewReplacer(
		"januari", "January", "februari", "February", "maret", "March",
		"april", "April", "mei", "May", "juni", "June", "juli", "July",
		"agustus", "August", "september", "September", "oktober", "October",
		"november", "November", "desember", "December",
	)
)

// Extract derives the structured fields of raw using r. Diagnosis is passed
// through with whitespace normalized; Clean decides whether the record survives.
func (r *Rules) Extract(raw RawRecord) Record {
	rec := Record{
		Species:   r.ExtractSpecies(raw.Species, raw.Dosage),
		HeadCount: r.ExtractHeadCount(raw.Dosage),
		Diagnosis: NormalizeDiagnosis(raw.Diagnosis),
		Symptoms:  strings.TrimSpace(raw.Symptoms),
	}
	if d, ok := r.ParseDate(raw.Date); ok {
		rec.setDate(d)
	} else if d, ok := DateInText(raw.Dosage); ok {
		rec.setDate(d)
	}
	return rec
}

func (rec *Record) setDate(d time.Time) {
	rec.Date = d
	rec.Year = d.Year()
	rec.Month = d.Format("2006-01")
}

// ExtractSpecies returns the first species whose keywords appear in any of texts,
// checked in order. No match yields OtherSpecies.
func (r *Rules) ExtractSpecies(texts ...string) string {
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		for i, re := range r.speciesRe {
			if re.MatchString(text) {
				return r.Species[i].Name
			}
		}
	}
	return OtherSpecies
}

// ExtractHeadCount reads the animal count from dosage text, defaulting to 1.
func (r *Rules) ExtractHeadCount(text string) int {
	m := r.headRe.FindStringSubmatch(text)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ParseDate tries every configured layout against a date cell.
func (r *Rules) ParseDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	text = indonesianMonths.Replace(strings.ToLower(text))
	for _, layout := range r.DateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
		if t, err := time.Parse(layout, titleWords(text)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type dateMatch struct {
	start   int
	y, m, d string
}

// DateInText finds the leftmost valid dd/mm/yyyy, dd-mm-yyyy or yyyy-mm-dd date
// in free text.
func DateInText(text string) (time.Time, bool) {
	var found []dateMatch
	for _, ix := range isoDate.FindAllStringSubmatchIndex(text, -1) {
		found = append(found, dateMatch{ix[0], text[ix[2]:ix[3]], text[ix[4]:ix[5]], text[ix[6]:ix[7]]})
	}
	for _, ix := range dayFirstDate.FindAllStringSubmatchIndex(text, -1) {
		found = append(found, dateMatch{ix[0], text[ix[6]:ix[7]], text[ix[4]:ix[5]], text[ix[2]:ix[3]]})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].start < found[j].start })
	for _, f := range found {
		if t, ok := buildDate(f.y, f.m, f.d); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func buildDate(y, m, d string) (time.Time, bool) {
	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(m)
	day, _ := strconv.Atoi(d)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// NormalizeDiagnosis collapses whitespace and title-cases each word.
func NormalizeDiagnosis(s string) string {
	return titleWords(strings.ToLower(strings.Join(strings.Fields(s), " ")))
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
