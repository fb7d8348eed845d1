package service

import (
	"regexp"
	"strings"
)

// lawPattern pairs a document id with the regexes that recognize it in a
// question. The table is data: adding a law is one more entry, no code.
type lawPattern struct {
	DocumentID string
	Patterns   []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`\b(?:` + e + `)\b`)
	}
	return out
}

var lawMapping = []lawPattern{
	{"CONSTITUCION_POLITICA_ESTADOS_UNIDOS_MEXICANOS", compileAll(`cpeum`, `constituci[oó]n`)},
	{"LEY_DEL_IMPUESTO_SOBRE_LA_RENTA", compileAll(`lisr`, `isr`, `renta`)},
	{"CODIGO_FISCAL_DE_LA_FEDERACION", compileAll(`cff`, `c[oó]digo fiscal`)},
	{"LEY_DEL_IMPUESTO_VALOR_AGREGADO", compileAll(`iva`, `valor agregado`)},
	{"LEY_IMPUESTO_ESPECIAL_PRODUCCION_SERVICIOS", compileAll(`ieps`, `especial`)},
	{"LEY_ADUANERA", compileAll(`aduanera`, `aduana`)},
	{"LEY_FEDERAL_IMPUESTO_SOBRE_AUTOMOVILES_NUEVOS", compileAll(`isan`, `autom[oó]viles`)},
	{"CONVENCION_MULTILATERAL_BEPS_(MLI)_OCDE", compileAll(`beps`, `ocde`)},
	{"LEY FEDERAL DE LOS DERECHOS DEL CONTRIBUYENTE DOF 23055005", compileAll(`derechos del contribuyente`)},
}

// regulationFor auto-includes the regulation of a matched law. Not every
// law has one listed; absence just means no auto-include.
var regulationFor = map[string]string{
	"CODIGO_FISCAL_DE_LA_FEDERACION":  "REGLAMENTO_CODIGO_FISCAL_FEDERACION",
	"LEY_DEL_IMPUESTO_SOBRE_LA_RENTA": "REGLAMENTO_LEY_IMPUESTO_SOBRE_RENTA",
	"LEY_DEL_IMPUESTO_VALOR_AGREGADO": "REGLAMENTO_LEY_DEL_IMPUESTO_VALOR_AGREGADO",
	"LEY_ADUANERA":                    "REGLAMENTO_LEY_ADUANERA",
}

// baseLegalDocs is consulted when the question names no specific law.
var baseLegalDocs = []string{
	"CONSTITUCION_POLITICA_ESTADOS_UNIDOS_MEXICANOS",
	"CODIGO_FISCAL_DE_LA_FEDERACION",
	"LEY_DEL_IMPUESTO_SOBRE_LA_RENTA",
}

var (
	cffAcronymRe = regexp.MustCompile(`(?i)\bcff\b`)

	// articleShapeRe recognizes an article reference like "29-A", "69-B bis".
	articleShapeRe = regexp.MustCompile(`(?i)\b(\d{1,3})\s*[-–]\s*([a-zA-Z])\b(\s*bis)?`)
)

// ResolveCandidateDocuments maps a question to the document ids worth
// searching, ordered and deduplicated.
//
// When the question names the federal tax code acronym together with an
// article-reference shape, only the tax code is returned. Asking for a
// specific article of a specific code must not pull in other laws.
func ResolveCandidateDocuments(question string) []string {
	q := strings.ToLower(question)

	if cffAcronymRe.MatchString(q) && articleShapeRe.MatchString(q) {
		return []string{"CODIGO_FISCAL_DE_LA_FEDERACION"}
	}

	seen := make(map[string]bool)
	var resolved []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			resolved = append(resolved, id)
		}
	}

	for _, lp := range lawMapping {
		for _, p := range lp.Patterns {
			if p.MatchString(q) {
				add(lp.DocumentID)
				if reg := regulationFor[lp.DocumentID]; reg != "" {
					add(reg)
				}
				break
			}
		}
	}

	if len(resolved) == 0 {
		return append([]string(nil), baseLegalDocs...)
	}
	return resolved
}
