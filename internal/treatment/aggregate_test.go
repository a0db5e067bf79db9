package treatment

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(month, diagnosis, species string, heads int) Record {
	r := Record{Diagnosis: diagnosis, Species: species, HeadCount: heads}
	if month != "" {
		d, err := time.Parse("2006-01", month)
		if err != nil {
			panic(err)
		}
		r.setDate(d)
	}
	return r
}

func fixture() []Record {
	return []Record{
		rec("2023-01", "Bloat", "Sapi", 2),
		rec("2023-01", "Bloat", "Sapi", 1),
		rec("2023-02", "Bloat", "Kambing", 3),
		rec("2023-01", "Scabies", "Kambing", 5),
		rec("2023-03", "Scabies", "Kambing", 1),
		rec("2023-03", "Diare", "Sapi", 1),
		rec("", "Diare", "Other", 1),
		rec("2023-02", "Anthrax", "Sapi", 1),
	}
}

func TestTopDiagnoses(t *testing.T) {
	top := TopDiagnoses(fixture(), 0)
	require.Len(t, top, 4)
	assert.Equal(t, Count{Key: "Bloat", Cases: 3, Heads: 6}, top[0])
	assert.Equal(t, "Diare", top[1].Key, "ties order by name")
	assert.Equal(t, "Scabies", top[2].Key)
	assert.Equal(t, "Anthrax", top[3].Key)

	assert.Len(t, TopDiagnoses(fixture(), 2), 2)
	assert.Empty(t, TopDiagnoses(nil, 5))
}

func TestSpeciesBreakdown(t *testing.T) {
	got := SpeciesBreakdown(fixture())
	assert.Equal(t, []Count{
		{Key: "Sapi", Cases: 4, Heads: 5},
		{Key: "Kambing", Cases: 3, Heads: 9},
		{Key: "Other", Cases: 1, Heads: 1},
	}, got)
}

func TestMonthlyCounts(t *testing.T) {
	got := MonthlyCounts(fixture())
	assert.Equal(t, []MonthCount{
		{Month: "2023-01", Diagnosis: "Bloat", Cases: 2},
		{Month: "2023-01", Diagnosis: "Scabies", Cases: 1},
		{Month: "2023-02", Diagnosis: "Anthrax", Cases: 1},
		{Month: "2023-02", Diagnosis: "Bloat", Cases: 1},
		{Month: "2023-03", Diagnosis: "Diare", Cases: 1},
		{Month: "2023-03", Diagnosis: "Scabies", Cases: 1},
	}, got)
}

func TestBuildPivot(t *testing.T) {
	p := BuildPivot(fixture(), 2)
	assert.Equal(t, []string{"2023-01", "2023-02", "2023-03"}, p.Months)
	assert.Equal(t, []string{"Bloat", "Diare"}, p.Diagnoses)
	assert.Equal(t, [][]int{
		{2, 0},
		{1, 0},
		{0, 1},
	}, p.Cells)
	assert.Equal(t, []int{2, 1, 0}, p.Series("Bloat"))
	assert.Nil(t, p.Series("Scabies"))

	all := BuildPivot(fixture(), 0)
	assert.Len(t, all.Diagnoses, 4)

	empty := BuildPivot(nil, 5)
	raw, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{"months": [], "diagnoses": [], "cells": []}`, string(raw))

	undated := BuildPivot([]Record{{Diagnosis: "Bloat", Species: "Sapi", HeadCount: 1}}, 5)
	assert.Equal(t, []string{}, undated.Months)
	assert.Equal(t, [][]int{}, undated.Cells)
}

func TestSummarize(t *testing.T) {
	s := Summarize(fixture())
	assert.Equal(t, 8, s.TotalCases)
	assert.Equal(t, 15, s.TotalHeads)
	assert.Equal(t, 4, s.Diagnoses)
	assert.Equal(t, 3, s.Species)
	assert.Equal(t, 1, s.Undated)
	require.NotNil(t, s.FirstDate)
	assert.Equal(t, "2023-01", s.FirstDate.Format("2006-01"))
	assert.Equal(t, "2023-03", s.LastDate.Format("2006-01"))

	assert.Nil(t, Summarize(nil).FirstDate)
}
