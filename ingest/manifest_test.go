package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterSpecsAll(t *testing.T) {
	specs, missing := FilterSpecs(LeyesBaseline, nil)
	assert.Equal(t, LeyesBaseline, specs)
	assert.Empty(t, missing)
}

func TestFilterSpecsSubset(t *testing.T) {
	specs, missing := FilterSpecs(LeyesBaseline, []string{
		"CODIGO_FISCAL_DE_LA_FEDERACION",
		"LEY_INEXISTENTE",
	})
	require.Len(t, specs, 1)
	assert.Equal(t, "CODIGO_FISCAL_DE_LA_FEDERACION", specs[0].DocumentID)
	assert.Equal(t, []string{"LEY_INEXISTENTE"}, missing)
}
