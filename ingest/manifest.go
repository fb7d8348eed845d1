package ingest

import "sasfiscal-backend/models"

// DocumentSpec is one manifest entry: a PDF on disk and the document row
// it maps to.
type DocumentSpec struct {
	Filename     string
	DocumentID   string
	Title        string
	DocType      string
	ExerciseYear int
}

// LeyesBaseline is the baseline manifest of federal laws and regulations.
// All entries are evergreen (year 0) and doc_type 'ley' unless stated.
var LeyesBaseline = []DocumentSpec{
	{
		Filename:   "CODIGO_FISCAL_DE_LA_FEDERACION.pdf",
		DocumentID: "CODIGO_FISCAL_DE_LA_FEDERACION",
		Title:      "Código Fiscal de la Federación",
		DocType:    models.DocTypeLey,
	},
	{
		Filename:   "CONSTITUCION_POLITICA_ESTADOS_UNIDOS_MEXICANOS.pdf",
		DocumentID: "CONSTITUCION_POLITICA_ESTADOS_UNIDOS_MEXICANOS",
		Title:      "Constitución Política de los Estados Unidos Mexicanos",
		DocType:    models.DocTypeLey,
	},
	{
		Filename:   "LEY_DEL_IMPUESTO_SOBRE_LA_RENTA.pdf",
		DocumentID: "LEY_DEL_IMPUESTO_SOBRE_LA_RENTA",
		Title:      "Ley del Impuesto Sobre la Renta",
		DocType:    models.DocTypeLey,
	},
	{
		Filename:   "LEY_DEL_IMPUESTO_VALOR_AGREGADO.pdf",
		DocumentID: "LEY_DEL_IMPUESTO_VALOR_AGREGADO",
		Title:      "Ley del Impuesto al Valor Agregado",
		DocType:    models.DocTypeLey,
	},
	{
		Filename:   "LEY_IMPUESTO_ESPECIAL_PRODUCCION_SERVICIOS.pdf",
		DocumentID: "LEY_IMPUESTO_ESPECIAL_PRODUCCION_SERVICIOS",
		Title:      "Ley del Impuesto Especial sobre Producción y Servicios",
		DocType:    models.DocTypeLey,
	},
	{
		Filename:   "LEY_ADUANERA.pdf",
		DocumentID: "LEY_ADUANERA",
		Title:      "Ley Aduanera",
		DocType:    models.DocTypeLey,
	},
	{
		Filename:   "LEY_FEDERAL_IMPUESTO_SOBRE_AUTOMOVILES_NUEVOS.pdf",
		DocumentID: "LEY_FEDERAL_IMPUESTO_SOBRE_AUTOMOVILES_NUEVOS",
		Title:      "Ley Federal del Impuesto sobre Automóviles Nuevos",
		DocType:    models.DocTypeLey,
	},
	{
		Filename:   "LEY FEDERAL DE LOS DERECHOS DEL CONTRIBUYENTE DOF 23055005.pdf",
		DocumentID: "LEY FEDERAL DE LOS DERECHOS DEL CONTRIBUYENTE DOF 23055005",
		Title:      "Ley Federal de los Derechos del Contribuyente",
		DocType:    models.DocTypeLey,
	},
	{
		Filename:   "CONVENCION_MULTILATERAL_BEPS_(MLI)_OCDE.pdf",
		DocumentID: "CONVENCION_MULTILATERAL_BEPS_(MLI)_OCDE",
		Title:      "Convención Multilateral BEPS (MLI) OCDE",
		DocType:    models.DocTypeLey,
	},
	{
		Filename:   "REGLAMENTO_CODIGO_FISCAL_FEDERACION.pdf",
		DocumentID: "REGLAMENTO_CODIGO_FISCAL_FEDERACION",
		Title:      "Reglamento del Código Fiscal de la Federación",
		DocType:    models.DocTypeReglamento,
	},
	{
		Filename:   "REGLAMENTO_LEY_IMPUESTO_SOBRE_RENTA.pdf",
		DocumentID: "REGLAMENTO_LEY_IMPUESTO_SOBRE_RENTA",
		Title:      "Reglamento de la Ley del Impuesto Sobre la Renta",
		DocType:    models.DocTypeReglamento,
	},
	{
		Filename:   "REGLAMENTO_LEY_DEL_IMPUESTO_VALOR_AGREGADO.pdf",
		DocumentID: "REGLAMENTO_LEY_DEL_IMPUESTO_VALOR_AGREGADO",
		Title:      "Reglamento de la Ley del IVA",
		DocType:    models.DocTypeReglamento,
	},
	{
		Filename:   "REGLAMENTO_LEY_ADUANERA.pdf",
		DocumentID: "REGLAMENTO_LEY_ADUANERA",
		Title:      "Reglamento de la Ley Aduanera",
		DocType:    models.DocTypeReglamento,
	},
}

// FilterSpecs keeps only the specs whose DocumentID is in wanted. It also
// returns the ids that were requested but not found in the manifest.
func FilterSpecs(specs []DocumentSpec, wanted []string) ([]DocumentSpec, []string) {
	if len(wanted) == 0 {
		return specs, nil
	}
	want := make(map[string]bool, len(wanted))
	for _, id := range wanted {
		want[id] = true
	}
	var out []DocumentSpec
	for _, s := range specs {
		if want[s.DocumentID] {
			out = append(out, s)
			delete(want, s.DocumentID)
		}
	}
	var missing []string
	for id := range want {
		missing = append(missing, id)
	}
	return out, missing
}
