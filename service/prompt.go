package service

import (
	"fmt"
	"sort"
	"strings"

	"sasfiscal-backend/models"
)

// ContextCharBudget caps the serialized evidence block inside the system
// prompt.
const ContextCharBudget = 400000

const truncationMarker = "... [Límite de seguridad alcanzado] ..."

const emptyContextPlaceholder = "No se encontró información específica en la base de conocimientos para este ejercicio."

// NoFragmentMessage is returned on the literal-citation path when no chunk
// matched the requested rule or article.
const NoFragmentMessage = "No se encontró el fragmento específico solicitado en la base de conocimientos."

const systemPromptTemplate = `
Eres un Asesor Fiscal Experto (IA) especializado en la legislación mexicana para el ejercicio 2025.
Tu misión es dar respuestas técnicas, fundamentadas y fáciles de leer para contadores y fiscalistas.

---
🧠 REGLA DE ORO: CONTINUIDAD NORMATIVA
1.  **Prioridad Temporal:** Busca primero disposiciones del año 2025 o 2026.
2.  **Vigencia Extendida:** Si NO encuentras información en 2025, ESTÁS AUTORIZADO a usar documentos de 2022, 2023 o 2024, asumiendo que siguen vigentes salvo que haya una derogación explícita.
3.  **Transparencia:** Si usas una ley de años anteriores, agrega al final:
    _"Nota: Respuesta basada en normativa [AÑO] por continuidad legal."_

---
📝 REGLAS DE FORMATO (OBLIGATORIO)
1.  **Estructura:** Usa párrafos cortos y listas con viñetas (-) para enumerar requisitos u obligaciones.
2.  **Énfasis:** Usa **negritas** para resaltar:
    * Números de Artículos (ej. **Art. 27 LISR**)
    * Reglas Misceláneas (ej. **Regla 3.5.1**)
    * Fechas clave y plazos.
3.  **Estilo:** Mantén un tono profesional pero directo. No uses saludos excesivos.
4. Para listar requisitos, SIEMPRE usa viñetas con "-" (no numeración romana) y cita la referencia en negritas, por ejemplo: **Art. 27, fracc. I LISR**.

---
CONTEXTO RECUPERADO DE LA BASE DE DATOS:
%s
`

// BuildSystemPrompt serializes the evidence into the system prompt, up to
// the character budget. Exceeding entries are dropped behind a visible
// marker; truncation is never an error.
func BuildSystemPrompt(evidence []models.Evidence) string {
	var parts []string
	currentChars := 0

	for i, ev := range evidence {
		entry := fmt.Sprintf(
			"\n--- DOCUMENTO %d ---\nFuente: %s\nTipo: %s\nTexto:\n%s\n",
			i+1, ev.SourceFilename, ev.DocType, ev.Text,
		)
		if currentChars+len(entry) < ContextCharBudget {
			parts = append(parts, entry)
			currentChars += len(entry)
		} else {
			parts = append(parts, truncationMarker)
			break
		}
	}

	context := strings.Join(parts, "\n")
	if context == "" {
		context = emptyContextPlaceholder
	}
	return fmt.Sprintf(systemPromptTemplate, context)
}

// BuildUserPrompt composes the user turn. When the evidence year differs
// from the requested one (and is not the year-agnostic 0), the model is
// instructed to append the continuity note verbatim.
func BuildUserPrompt(question, regimen string, ejercicio, usedYear int) string {
	noteRule := ""
	if usedYear != ejercicio && usedYear != 0 {
		noteRule = fmt.Sprintf("\n\nAl final agrega exactamente: \"Nota: Respuesta basada en normativa %d por continuidad legal.\"", usedYear)
	}

	return fmt.Sprintf(
		"Ejercicio fiscal solicitado: %d\n"+
			"Ejercicio de evidencia recuperada: %d\n"+
			"Régimen (si aplica): %s\n"+
			"Pregunta: %s\n\n"+
			"Responde específicamente a la pregunta usando SOLO el contexto recuperado. "+
			"Obligatorio: usa viñetas con '-' para cada requisito y cita la referencia exacta en negritas (ej. **Art. 27, fracc. I LISR**).%s",
		ejercicio, usedYear, regimen, question, noteRule,
	)
}

// FormatLiteralCitation renders a verbatim citation without the LLM. The
// chunks with the highest page_start are the rule's body (indices come
// first in the PDF); they are sorted structurally, concatenated and quoted
// line by line.
func FormatLiteralCitation(evidence []models.Evidence) string {
	if len(evidence) == 0 {
		return NoFragmentMessage
	}

	maxPage := 0
	for _, ev := range evidence {
		if ev.PageStart != nil && *ev.PageStart > maxPage {
			maxPage = *ev.PageStart
		}
	}

	var selected []models.Evidence
	for _, ev := range evidence {
		if pageOrZero(ev.PageStart) == maxPage {
			selected = append(selected, ev)
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		a, b := selected[i], selected[j]
		if pa, pb := pageOrZero(a.PageStart), pageOrZero(b.PageStart); pa != pb {
			return pa < pb
		}
		if pa, pb := pageOrZero(a.PageEnd), pageOrZero(b.PageEnd); pa != pb {
			return pa < pb
		}
		return a.ChunkID < b.ChunkID
	})

	var texts []string
	for _, ev := range selected {
		texts = append(texts, strings.TrimSpace(ev.Text))
	}
	body := strings.Join(texts, "\n\n")

	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}

func pageOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
