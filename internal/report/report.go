// Package report renders the merged entry/exit timeline for export.
package report

import (
	"fmt"

	"github.com/gocarina/gocsv"

	"meuestoque/backend/internal/domain"
	"meuestoque/backend/internal/money"
)

const dateLayout = "2006-01-02"

// csvRecord is the fixed six-column export shape. Monetary values are
// rendered with a comma decimal marker.
type csvRecord struct {
	Tipo       string `csv:"Tipo"`
	Produto    string `csv:"Produto"`
	Categoria  string `csv:"Categoria"`
	Quantidade int    `csv:"Quantidade"`
	Valor      string `csv:"Valor"`
	Data       string `csv:"Data"`
}

func ToCSV(rows []domain.ReportRow) (string, error) {
	records := make([]*csvRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, &csvRecord{
			Tipo:       displayType(row.Type),
			Produto:    row.ProductName,
			Categoria:  row.Category,
			Quantidade: row.Quantity,
			Valor:      money.FormatBRL(row.UnitPriceCents),
			Data:       row.Date.Format(dateLayout),
		})
	}
	return gocsv.MarshalString(&records)
}

// ExportFileName names the CSV attachment after the requested range.
func ExportFileName(start string, end string) string {
	return fmt.Sprintf("relatorio_estoque_%s_%s.csv", start, end)
}

func displayType(rowType string) string {
	switch rowType {
	case domain.EntryType:
		return "Entrada"
	case domain.ExitType:
		return "Saida"
	}
	return rowType
}
