package ingest

import (
	"regexp"
	"strings"
)

// Canonical article token rules:
//   - hyphenated uppercase suffixes: 69-B-BIS, 1-A-TER
//   - transitory articles carry a prefix: TRANS-PRIMERO, TRANS-DECIMO
//   - ordinal marks are discarded: 1o, 1º -> 1
//
// The token does not include the law; global uniqueness comes from
// (document_id, norm_id) at the database layer.

var articleHeaderRe = regexp.MustCompile(
	`(?i)^\s*art(?:[ií]culo)?\.?\s+(?:(\d+)(?:[oº])?(?:\s*[-–—]\s*([A-Za-zÁÉÍÓÚ]))?(?:\s+(bis|ter|quater|quinquies|sexies|septies|octies|nonies|decies))?|(único|unico|primero|segundo|tercero|cuarto|quinto|sexto|séptimo|septimo|octavo|noveno|décimo|decimo))\s*(?:[.\-–—:])?`,
)

// ruleHeaderRe matches the start of an RMF rule body: a dotted id of 2-6
// segments followed by a period, e.g. "2.1.1. Para los efectos de...".
var ruleHeaderRe = regexp.MustCompile(`^\s*(\d+(?:\.\d+){1,5})\.\s`)

var accentReplacer = strings.NewReplacer(
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ü", "U", "Ñ", "N",
)

func stripAccents(s string) string {
	return accentReplacer.Replace(s)
}

// ParseArticleHeader returns the canonical article token if the line is a
// statutory article header, or ("", false) otherwise.
func ParseArticleHeader(line string) (string, bool) {
	m := articleHeaderRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}

	if trans := m[4]; trans != "" {
		return "TRANS-" + stripAccents(strings.ToUpper(trans)), true
	}

	token := m[1]
	if lit := m[2]; lit != "" {
		token += "-" + stripAccents(strings.ToUpper(lit))
	}
	if suf := m[3]; suf != "" {
		token += "-" + strings.ToUpper(suf)
	}
	return token, true
}

// ParseRuleHeader returns the dotted rule id ("2.1.1") if the line opens an
// RMF rule body, or ("", false) otherwise.
func ParseRuleHeader(line string) (string, bool) {
	m := ruleHeaderRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ComposeArticleToken builds the canonical token from its parts, mirroring
// ParseArticleHeader's output. suffixWord is BIS/TER/... or empty.
func ComposeArticleToken(number string, letter string, suffixWord string) string {
	token := number
	if letter != "" {
		token += "-" + strings.ToUpper(letter)
	}
	if suffixWord != "" {
		token += "-" + strings.ToUpper(suffixWord)
	}
	return token
}
