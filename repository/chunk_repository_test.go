package repository

import (
	"strings"
	"testing"

	"sasfiscal-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeEvidenceVectorFirst(t *testing.T) {
	vector := []models.Evidence{
		{Text: "fragmento A", Source: models.SourceVector},
		{Text: "fragmento B", Source: models.SourceVector},
	}
	keyword := []models.Evidence{
		{Text: "fragmento B", Source: models.SourceKeyword}, // duplicate of vector hit
		{Text: "fragmento C", Source: models.SourceKeyword},
	}

	merged := MergeEvidence(vector, keyword, 12)
	require.Len(t, merged, 3)
	assert.Equal(t, "fragmento A", merged[0].Text)
	assert.Equal(t, "fragmento B", merged[1].Text)
	assert.Equal(t, models.SourceVector, merged[1].Source, "vector copy wins over keyword duplicate")
	assert.Equal(t, "fragmento C", merged[2].Text)
}

func TestMergeEvidenceDedupByPrefix(t *testing.T) {
	long := strings.Repeat("x", 300)
	vector := []models.Evidence{{Text: long + " cola uno"}}
	keyword := []models.Evidence{{Text: long + " cola dos"}}

	// Identical first 200 chars collapse to one entry.
	merged := MergeEvidence(vector, keyword, 12)
	assert.Len(t, merged, 1)
}

func TestMergeEvidenceCap(t *testing.T) {
	var vector []models.Evidence
	for i := 0; i < 20; i++ {
		vector = append(vector, models.Evidence{Text: strings.Repeat("v", i+1)})
	}
	merged := MergeEvidence(vector, nil, 5)
	assert.Len(t, merged, 5)
}

func TestPreferRuleBody(t *testing.T) {
	evidence := []models.Evidence{
		{ChunkID: 1, Text: "Capítulo 2.1. Disposiciones generales\nregla 2.1.1 ......... 15"},
		{ChunkID: 2, Text: "2.1.1. Para los efectos de los artículos 12 y 13 del CFF..."},
		{ChunkID: 3, Text: "Índice\n2.1.1 sin punto final"},
	}

	got := PreferRuleBody(evidence, "2.1.1")
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ChunkID)
}

func TestPreferRuleBodyNoBodyKeepsAll(t *testing.T) {
	evidence := []models.Evidence{
		{ChunkID: 1, Text: "regla 2.1.1 mencionada de paso"},
		{ChunkID: 2, Text: "otro índice"},
	}
	assert.Equal(t, evidence, PreferRuleBody(evidence, "2.1.1"))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% deducible`, escapeLike(`100% deducible`))
	assert.Equal(t, `tasa\_cero`, escapeLike(`tasa_cero`))
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
}

func TestYearClause(t *testing.T) {
	assert.Equal(t, "d.exercise_year = $2", yearClause(SearchOptions{}))
	assert.Equal(t,
		"(d.exercise_year = $2 OR d.exercise_year = 0)",
		yearClause(SearchOptions{IncludeEvergreenYear: true}))
	assert.Equal(t,
		"(d.exercise_year = $2 OR d.exercise_year IS NULL)",
		yearClause(SearchOptions{IncludeNullYear: true}))
	assert.Equal(t,
		"(d.exercise_year = $2 OR d.exercise_year = 0 OR d.exercise_year IS NULL)",
		yearClause(SearchOptions{IncludeEvergreenYear: true, IncludeNullYear: true}))
}
