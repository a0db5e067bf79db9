package treatment

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"
)

// ErrMissingColumn is returned when a log has no diagnosis column.
var ErrMissingColumn = errors.New("missing required column")

// Column identifies a logical treatment-log field.
type Column string

const (
	ColDate      Column = "date"
	ColDiagnosis Column = "diagnosis"
	ColDosage    Column = "dosage"
	ColSymptoms  Column = "symptoms"
	ColSpecies   Column = "species"
)

// HeaderAliases maps normalized header text to columns.
var HeaderAliases = map[string]Column{
	"tanggal":           ColDate,
	"tgl":               ColDate,
	"date":              ColDate,
	"tanggalpengobatan": ColDate,
	"tanggalkasus":      ColDate,
	"diagnosa":          ColDiagnosis,
	"diagnosis":         ColDiagnosis,
	"diagnose":          ColDiagnosis,
	"dosis":             ColDosage,
	"dosage":            ColDosage,
	"dosisjumlah":       ColDosage,
	"obatdosis":         ColDosage,
	"pengobatan":        ColDosage,
	"cirikasus":         ColSymptoms,
	"gejala":            ColSymptoms,
	"gejalaklinis":      ColSymptoms,
	"symptoms":          ColSymptoms,
	"anamnesa":          ColSymptoms,
	"hewan":             ColSpecies,
	"jenishewan":        ColSpecies,
	"species":           ColSpecies,
	"spesies":           ColSpecies,
}

func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Options controls CSV reading.
type Options struct {
	// Delimiter for CSV. If 0, auto-detects among ',', ';', '\t'.
	Delimiter rune
	// Source labels records for error messages.
	Source string
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV parses a treatment log into raw records.
func ReadCSV(r io.Reader, opts Options) ([]RawRecord, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(3); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(3)
	}

	delim := opts.Delimiter
	if delim == 0 {
		line, err := br.Peek(4096)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return nil, fmt.Errorf("%s: read header: %w", opts.Source, err)
		}
		delim = detectDelimiter(line)
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty file", opts.Source)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", opts.Source, err)
	}

	cols := map[Column]int{}
	for i, h := range header {
		if c, ok := HeaderAliases[normalizeHeader(h)]; ok {
			if _, seen := cols[c]; !seen {
				cols[c] = i
			}
		}
	}
	if _, ok := cols[ColDiagnosis]; !ok {
		return nil, fmt.Errorf("%s: %w: diagnosis (header %v)", opts.Source, ErrMissingColumn, header)
	}

	cell := func(row []string, c Column) string {
		i, ok := cols[c]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var out []RawRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", opts.Source, line, err)
		}
		if blankRow(row) {
			continue
		}
		out = append(out, RawRecord{
			Source:    opts.Source,
			Line:      line,
			Date:      cell(row, ColDate),
			Diagnosis: cell(row, ColDiagnosis),
			Dosage:    cell(row, ColDosage),
			Symptoms:  cell(row, ColSymptoms),
			Species:   cell(row, ColSpecies),
		})
	}
	return out, nil
}

func detectDelimiter(sample []byte) rune {
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := bytes.Count(sample, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ReadFile parses one CSV file.
func ReadFile(path string) ([]RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f, Options{Source: filepath.Base(path)})
}

// Discover lists the CSV files under path, sorted. A file path is returned as is.
func Discover(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", path, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		files = append(files, filepath.Join(path, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// LoadDir reads every CSV under path concurrently. Records keep file order.
func LoadDir(ctx context.Context, path string) ([]RawRecord, error) {
	files, err := Discover(path)
	if err != nil {
		return nil, err
	}

	parts := make([][]RawRecord, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			recs, err := ReadFile(file)
			if err != nil {
				return err
			}
			parts[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []RawRecord
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}
