package model

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPipeline() *Pipeline {
	return &Pipeline{
		Vectorizer: &Vectorizer{
			Vocabulary: map[string]int{
				"kembung": 0, "perut": 1, "diare": 2, "mencret": 3, "demam": 4, "perut kembung": 5,
			},
			IDF:        []float64{1.5, 1, 1.2, 1.4, 1.1, 2},
			NgramRange: [2]int{1, 2},
			Lowercase:  true,
			Norm:       "l2",
		},
		Classifier: &LinearClassifier{
			Coef: [][]float64{
				{2, 0.5, 0, 0, 0, 2},
				{0, 0.2, 2, 2, 0, 0},
				{0, 0, 0, 0, 3, 0},
			},
			Intercept: []float64{0, 0, 0},
			Classes:   []int{0, 1, 2},
		},
	}
}

func testLocal(t *testing.T) *Local {
	t.Helper()
	p := testPipeline()
	require.NoError(t, p.Init())
	e, err := NewLabelEncoder([]string{"Bloat", "Diare", "Demam"})
	require.NoError(t, err)
	l, err := NewLocal(p, e)
	require.NoError(t, err)
	return l
}

func writeJSON(t *testing.T, dir, name string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestVectorizerTransform(t *testing.T) {
	p := testPipeline()
	require.NoError(t, p.Init())

	x := p.Vectorizer.Transform("Perut KEMBUNG parah")
	require.Len(t, x, 3)
	assert.Contains(t, x, 5, "bigram should be counted")

	var norm float64
	for _, w := range x {
		norm += w * w
	}
	assert.InDelta(t, 1.0, norm, 1e-9)

	assert.Empty(t, p.Vectorizer.Transform("a b c"))
}

func TestVectorizerSublinearAndL1(t *testing.T) {
	v := &Vectorizer{Vocabulary: map[string]int{"demam": 0, "diare": 1}, SublinearTF: true, Norm: "l1", Lowercase: true}
	require.NoError(t, v.init())
	x := v.Transform("demam demam demam diare")
	assert.InDelta(t, 1.0, x[0]+x[1], 1e-9)
	assert.Greater(t, x[0], x[1])
}

func TestVectorizerUnicodeTokens(t *testing.T) {
	v := &Vectorizer{Vocabulary: map[string]int{"café": 0, "demam": 1}, Lowercase: true}
	require.NoError(t, v.init())
	assert.Equal(t, []string{"café", "demam"}, v.Tokens("Café demam"))
	assert.Equal(t, []string{"ñandú", "sapi_2"}, v.Tokens("ñandú, x sapi_2!"))
	assert.Len(t, v.Transform("CAFÉ demam"), 2)

	single := &Vectorizer{Vocabulary: map[string]int{"x": 0}, TokenPattern: `(?u)\b\w+\b`}
	require.NoError(t, single.init())
	assert.Equal(t, []string{"x", "é"}, single.Tokens("x é"))

	custom := &Vectorizer{Vocabulary: map[string]int{"12": 0}, TokenPattern: `\d+`}
	require.NoError(t, custom.init())
	assert.Equal(t, []string{"12", "7"}, custom.Tokens("dosis 12 ml x7"))
}

func TestVectorizerRejectsBadArtifacts(t *testing.T) {
	cases := map[string]*Vectorizer{
		"empty":      {},
		"idf length": {Vocabulary: map[string]int{"a": 0}, IDF: []float64{1, 2}},
		"column":     {Vocabulary: map[string]int{"a": 3}},
		"norm":       {Vocabulary: map[string]int{"a": 0}, Norm: "max"},
		"ngram":      {Vocabulary: map[string]int{"a": 0}, NgramRange: [2]int{2, 1}},
		"pattern":    {Vocabulary: map[string]int{"a": 0}, TokenPattern: `(`},
	}
	for name, v := range cases {
		assert.Error(t, v.init(), name)
	}
}

func TestPipelinePredict(t *testing.T) {
	p := testPipeline()
	require.NoError(t, p.Init())

	assert.Equal(t, 0, p.Predict("perut kembung"))
	assert.Equal(t, 1, p.Predict("sapi mencret dan diare"))
	assert.Equal(t, 2, p.Predict("demam tinggi"))
	assert.Equal(t, 0, p.Predict("tidak ada kata dikenal"), "ties resolve to lowest class")
}

func TestBinaryClassifier(t *testing.T) {
	c := &LinearClassifier{Coef: [][]float64{{1.5}}, Intercept: []float64{-0.5}, Classes: []int{0, 1}}
	require.NoError(t, c.init(1))

	ranked := c.Rank(SparseVector{0: 1})
	assert.Equal(t, 1, ranked[0].Class)
	assert.InDelta(t, 0.7310585786, ranked[0].Prob, 1e-6)

	ranked = c.Rank(SparseVector{})
	assert.Equal(t, 0, ranked[0].Class)
}

func TestClassifierDimensionMismatch(t *testing.T) {
	c := &LinearClassifier{Coef: [][]float64{{1, 2}, {1}}, Intercept: []float64{0, 0}, Classes: []int{0, 1}}
	assert.Error(t, c.init(2))

	c = &LinearClassifier{Coef: [][]float64{{1}}, Intercept: []float64{0}, Classes: []int{0}}
	assert.Error(t, c.init(1))
}

func TestLabelEncoder(t *testing.T) {
	e, err := NewLabelEncoder([]string{"Bloat", "Diare"})
	require.NoError(t, err)

	name, err := e.InverseTransform(1)
	require.NoError(t, err)
	assert.Equal(t, "Diare", name)

	label, err := e.Transform("Bloat")
	require.NoError(t, err)
	assert.Equal(t, 0, label)

	_, err = e.InverseTransform(7)
	assert.ErrorIs(t, err, ErrUnknownLabel)
	_, err = e.Transform("Scabies")
	assert.ErrorIs(t, err, ErrUnknownLabel)

	_, err = NewLabelEncoder([]string{"A", "A"})
	assert.Error(t, err)
}

func TestLocalPredict(t *testing.T) {
	l := testLocal(t)

	pred, err := l.Predict(context.Background(), Input{Symptoms: "Perut kembung sejak pagi", Species: "Sapi"})
	require.NoError(t, err)
	assert.Equal(t, "Bloat", pred.Diagnosis)
	assert.Equal(t, "local", pred.Source)
	assert.Len(t, pred.Alternatives, 2)
	assert.Greater(t, pred.Confidence, pred.Alternatives[0].Confidence)

	_, err = l.Predict(context.Background(), Input{Symptoms: "   ", Species: "Sapi"})
	assert.ErrorIs(t, err, ErrEmptyInput)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Predict(ctx, Input{Symptoms: "demam"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInputText(t *testing.T) {
	assert.Equal(t, "sapi demam", Input{Symptoms: " demam ", Species: "sapi"}.Text())
	assert.Equal(t, "demam", Input{Symptoms: "demam"}.Text())
}

func TestNewLocalRejectsMissingClass(t *testing.T) {
	p := testPipeline()
	require.NoError(t, p.Init())
	e, err := NewLabelEncoder([]string{"Bloat", "Diare"})
	require.NoError(t, err)
	_, err = NewLocal(p, e)
	assert.ErrorIs(t, err, ErrUnknownLabel)
}

func TestLoadLocalFromDisk(t *testing.T) {
	dir := t.TempDir()
	pipelinePath := writeJSON(t, dir, "pipeline.json", testPipeline())
	encoderPath := writeJSON(t, dir, "encoder.json", map[string]any{"classes": []string{"Bloat", "Diare", "Demam"}})

	l, err := LoadLocal(pipelinePath, encoderPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bloat", "Diare", "Demam"}, l.Classes())

	pred, err := l.Predict(context.Background(), Input{Symptoms: "demam"})
	require.NoError(t, err)
	assert.Equal(t, "Demam", pred.Diagnosis)

	_, err = LoadLocal(filepath.Join(dir, "missing.json"), encoderPath)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = LoadPipeline(bad)
	assert.Error(t, err)
	_, err = LoadLabelEncoder(bad)
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	calls := 0
	r := NewRegistry(func() (Classifier, error) {
		calls++
		return testLocal(t), nil
	})

	_, err := r.Predict(context.Background(), Input{Symptoms: "demam"})
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.False(t, r.Loaded())

	require.NoError(t, r.Reload())
	assert.True(t, r.Loaded())
	assert.False(t, r.LoadedAt().IsZero())
	assert.EqualValues(t, 1, r.Loads())

	pred, err := r.Predict(context.Background(), Input{Symptoms: "diare"})
	require.NoError(t, err)
	assert.Equal(t, "Diare", pred.Diagnosis)
	assert.Equal(t, 1, calls)
}

func TestRegistryKeepsPreviousOnFailedReload(t *testing.T) {
	fail := false
	r := NewRegistry(func() (Classifier, error) {
		if fail {
			return nil, os.ErrNotExist
		}
		return testLocal(t), nil
	})
	require.NoError(t, r.Reload())
	fail = true
	assert.Error(t, r.Reload())

	pred, err := r.Predict(context.Background(), Input{Symptoms: "demam"})
	require.NoError(t, err)
	assert.Equal(t, "Demam", pred.Diagnosis)
}
