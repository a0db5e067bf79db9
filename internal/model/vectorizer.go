package model

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultTokenPattern matches runs of two or more word characters.
const DefaultTokenPattern = `(?u)\b\w\w+\b`

// Vectorizer is an exported TF-IDF vectorizer.
type Vectorizer struct {
	Vocabulary   map[string]int `json:"vocabulary"`
	IDF          []float64      `json:"idf"`
	NgramRange   [2]int         `json:"ngram_range"`
	Lowercase    bool           `json:"lowercase"`
	SublinearTF  bool           `json:"sublinear_tf"`
	Norm         string         `json:"norm"`
	TokenPattern string         `json:"token_pattern"`

	token  *regexp.Regexp
	minRun int
}

// SparseVector maps feature column to weight.
type SparseVector map[int]float64

func (v *Vectorizer) init() error {
	if len(v.Vocabulary) == 0 {
		return fmt.Errorf("vectorizer: empty vocabulary")
	}
	if len(v.IDF) > 0 && len(v.IDF) != len(v.Vocabulary) {
		return fmt.Errorf("vectorizer: idf has %d weights for %d terms", len(v.IDF), len(v.Vocabulary))
	}
	for term, col := range v.Vocabulary {
		if col < 0 || col >= len(v.Vocabulary) {
			return fmt.Errorf("vectorizer: term %q maps to column %d out of range", term, col)
		}
	}
	if v.NgramRange == [2]int{} {
		v.NgramRange = [2]int{1, 1}
	}
	if v.NgramRange[0] < 1 || v.NgramRange[1] < v.NgramRange[0] {
		return fmt.Errorf("vectorizer: invalid ngram range %v", v.NgramRange)
	}
	switch v.Norm {
	case "", "l1", "l2":
	default:
		return fmt.Errorf("vectorizer: unsupported norm %q", v.Norm)
	}

	pattern := v.TokenPattern
	if pattern == "" {
		pattern = DefaultTokenPattern
	}
	if n, ok := wordRunMin(pattern); ok {
		v.minRun = n
		return nil
	}
	// Go regexp has no (?u) and its \b is ASCII-only. \w is widened to letters and
	// digits; custom patterns relying on \b next to non-ASCII letters still differ.
	pattern = strings.ReplaceAll(strings.TrimPrefix(pattern, "(?u)"), `\w`, `[\p{L}\p{N}_]`)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("vectorizer: compile token pattern: %w", err)
	}
	v.token = re
	return nil
}

// wordRunMin recognizes \b-delimited word-run patterns such as \b\w\w+\b and
// returns the shortest run they accept.
func wordRunMin(pattern string) (int, bool) {
	p := strings.TrimPrefix(pattern, "(?u)")
	if len(p) < 4 || !strings.HasPrefix(p, `\b`) || !strings.HasSuffix(p, `\b`) {
		return 0, false
	}
	inner := p[2 : len(p)-2]
	n := 0
	for strings.HasPrefix(inner, `\w`) {
		inner = inner[2:]
		n++
		if inner == "+" {
			return n, true
		}
	}
	return 0, false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_'
}

// Features returns the number of columns the vectorizer produces.
func (v *Vectorizer) Features() int {
	return len(v.Vocabulary)
}

// Tokens splits text the way the vectorizer does before n-gram expansion.
func (v *Vectorizer) Tokens(text string) []string {
	if v.Lowercase {
		text = strings.ToLower(text)
	}
	if v.minRun == 0 {
		return v.token.FindAllString(text, -1)
	}
	words := strings.FieldsFunc(text, func(r rune) bool { return !isWordRune(r) })
	tokens := words[:0]
	for _, w := range words {
		if utf8.RuneCountInString(w) >= v.minRun {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// Transform converts text to a weighted, normalized sparse vector.
func (v *Vectorizer) Transform(text string) SparseVector {
	tokens := v.Tokens(text)
	counts := SparseVector{}
	for n := v.NgramRange[0]; n <= v.NgramRange[1]; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			gram := tokens[i]
			if n > 1 {
				gram = strings.Join(tokens[i:i+n], " ")
			}
			if col, ok := v.Vocabulary[gram]; ok {
				counts[col]++
			}
		}
	}

	for col, tf := range counts {
		if v.SublinearTF {
			tf = 1 + math.Log(tf)
		}
		if len(v.IDF) > 0 {
			tf *= v.IDF[col]
		}
		counts[col] = tf
	}

	var norm float64
	switch v.Norm {
	case "l2":
		for _, w := range counts {
			norm += w * w
		}
		norm = math.Sqrt(norm)
	case "l1":
		for _, w := range counts {
			norm += math.Abs(w)
		}
	}
	if norm > 0 {
		for col := range counts {
			counts[col] /= norm
		}
	}
	return counts
}
