package notionsync

import (
	"github.com/jomei/notionapi"

	"github.com/ecaldas/ans-expense-tracker/internal/bigquery"
)

// AggregateToNotionProperties converts a per-operator expense summary to
// Notion properties. The Operadora title doubles as the sync key, so it must
// stay stable across runs.
func AggregateToNotionProperties(row *bigquery.AggregateQueryRow) notionapi.Properties {
	props := notionapi.Properties{
		"Operadora": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: row.RazaoSocial,
					},
				},
			},
		},
		"Total Despesas": notionapi.NumberProperty{
			Number: row.TotalDespesas,
		},
		"Média Trimestral": notionapi.NumberProperty{
			Number: row.MediaTrimestral,
		},
	}

	// UF
	if row.UF != "" {
		props["UF"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: row.UF,
			},
		}
	}

	// Desvio Padrão is NULL for operators with a single period; leave the
	// property unset rather than writing a misleading zero.
	if row.DesvioPadrao.Valid {
		props["Desvio Padrão"] = notionapi.NumberProperty{
			Number: row.DesvioPadrao.Float64,
		}
	}

	return props
}
