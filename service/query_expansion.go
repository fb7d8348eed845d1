package service

import (
	"regexp"
	"strings"
)

// fiscalSynonyms expands a user term into related fiscal vocabulary. Both
// accented and plain spellings appear where users type both.
var fiscalSynonyms = []struct {
	Term     string
	Synonyms []string
}{
	{"límite", []string{"exención", "tope", "máximo", "monto máximo", "cantidad máxima"}},
	{"limite", []string{"exención", "tope", "máximo", "monto máximo", "cantidad máxima"}},
	{"tope", []string{"límite", "exención", "máximo"}},
	{"exención", []string{"límite", "exento", "no gravado", "no sujeto al pago"}},
	{"exento", []string{"exención", "no gravado", "límite"}},

	{"salario mínimo", []string{"UMA", "unidad de medida", "veces el salario", "siete veces"}},
	{"uma", []string{"salario mínimo", "unidad de medida y actualización"}},
	{"veces", []string{"salario mínimo", "UMA", "siete veces", "equivalente"}},

	{"deducción", []string{"deducible", "deducir", "gasto deducible"}},
	{"deducir", []string{"deducción", "deducible"}},
	{"deducible", []string{"deducción", "requisitos de deducción"}},

	{"previsión social", []string{"prestaciones", "beneficios trabajadores", "seguridad social"}},
	{"prestaciones", []string{"previsión social", "beneficios"}},

	{"requisitos", []string{"condiciones", "requisito", "cumplir", "obligaciones"}},
	{"requisito", []string{"requisitos", "condiciones"}},

	{"fracción xi", []string{"fracción 11", "once"}},
	{"fracción 11", []string{"fracción XI", "once"}},

	{"persona moral", []string{"empresa", "sociedad", "contribuyente persona moral"}},
	{"persona física", []string{"individuo", "contribuyente persona física"}},

	{"ingreso acumulable", []string{"ingreso gravable", "base gravable"}},
	{"ingreso exento", []string{"exención", "no acumulable"}},
}

// expansionPatterns fire on whole-question shapes and add phrases the
// synonym table cannot reach.
var expansionPatterns = []struct {
	Pattern    *regexp.Regexp
	Expansions []string
}{
	{
		regexp.MustCompile(`(?i)(límite|limite|tope|máximo).*(deducción|deducir|exención|exento|previsión)`),
		[]string{"siete veces el salario mínimo", "salario mínimo general", "UMA",
			"cantidad equivalente", "monto de la exención", "ingreso no sujeto"},
	},
	{
		regexp.MustCompile(`(?i)(cuánto|cuanto|cuántos|cuantos).*(deducir|exento|exención|límite)`),
		[]string{"veces el salario", "salario mínimo", "UMA", "monto máximo", "cantidad"},
	},
	{
		regexp.MustCompile(`(?i)(porcentaje|%|por ciento).*(deducción|deducible|límite)`),
		[]string{"proporción", "fracción", "parte", "monto"},
	},
}

// ExpandQuery enriches a question with related fiscal terms. It returns the
// expanded query used for the embedding, plus up to 5 keywords for the
// hybrid substring search. Expansion is advisory: retrieval works without
// it.
func ExpandQuery(question string) (string, []string) {
	qLower := strings.ToLower(question)

	var additional []string
	var keywords []string

	for _, entry := range fiscalSynonyms {
		if strings.Contains(qLower, entry.Term) {
			n := len(entry.Synonyms)
			if n > 3 {
				n = 3
			}
			additional = append(additional, entry.Synonyms[:n]...)
			k := len(entry.Synonyms)
			if k > 2 {
				k = 2
			}
			keywords = append(keywords, entry.Synonyms[:k]...)
		}
	}

	for _, entry := range expansionPatterns {
		if entry.Pattern.MatchString(qLower) {
			additional = append(additional, entry.Expansions...)
			k := len(entry.Expansions)
			if k > 3 {
				k = 3
			}
			keywords = append(keywords, entry.Expansions[:k]...)
		}
	}

	// Dedupe preserving order, case-insensitive.
	seen := make(map[string]bool)
	var unique []string
	for _, term := range additional {
		key := strings.ToLower(term)
		if !seen[key] {
			seen[key] = true
			unique = append(unique, term)
		}
	}

	expanded := question
	if len(unique) > 0 {
		n := len(unique)
		if n > 5 {
			n = 5
		}
		expanded = question + " (" + strings.Join(unique[:n], ", ") + ")"
	}

	seenKw := make(map[string]bool)
	var uniqueKw []string
	for _, kw := range keywords {
		key := strings.ToLower(kw)
		if !seenKw[key] {
			seenKw[key] = true
			uniqueKw = append(uniqueKw, kw)
		}
	}
	if len(uniqueKw) > 5 {
		uniqueKw = uniqueKw[:5]
	}

	return expanded, uniqueKw
}
