package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/savon-distrib/ledger-engine/ledger"
	"github.com/savon-distrib/ledger-engine/stock"
)

const (
	SheetSummary = "Résumé"
	SheetSales   = "Ventes"
	SheetStock   = "Stock"

	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

const dateLayout = "02/01/2006"

// WriteXLSX writes a workbook with a summary, the sales ledger and the
// stock history. Amounts in the summary are formatted with currency.
func WriteXLSX(w io.Writer, snap ledger.Snapshot, d Dashboard, currency string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	for _, name := range []string{SheetSales, SheetStock} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	names := supermarketNames(snap.Supermarkets)

	if err := writeSummary(f, d, currency); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	if err := writeSales(f, snap.Sales, names); err != nil {
		return fmt.Errorf("sales sheet: %w", err)
	}
	if err := writeStock(f, snap.Movements, snap.Fragrances, d.Stock); err != nil {
		return fmt.Errorf("stock sheet: %w", err)
	}

	return f.Write(w)
}

func writeSummary(f *excelize.File, d Dashboard, currency string) error {
	rows := [][]interface{}{
		{"Généré le", d.GeneratedAt.Format(dateLayout)},
		{"Période", d.Window.Label},
		{"Du", d.Window.Period.Start.Format(dateLayout)},
		{"Au", d.Window.Period.End.Format(dateLayout)},
		{},
		{"Quantité vendue", d.Window.Data.Quantity},
		{"Chiffre d'affaires", ledger.FormatMoney(d.Window.Data.Revenue, currency)},
		{"Bénéfice", ledger.FormatMoney(d.Window.Data.Profit, currency)},
		{"Bénéfice encaissé", ledger.FormatMoney(d.Window.Data.PaidProfit, currency)},
		{"Paiement fournisseur", ledger.FormatMoney(d.Window.Data.SupplierPayment, currency)},
		{"Unités sans tarif", d.Window.Data.UnpricedQuantity},
		{},
		{"Ancienneté des impayés", string(d.Aging.Bucket)},
		{"Total impayé", ledger.FormatMoney(d.SupplierReturn.TotalUnpaid, currency)},
		{"Total encaissé", ledger.FormatMoney(d.SupplierReturn.TotalPaid, currency)},
		{"Retour fournisseur possible", yesNo(d.SupplierReturn.CanReturn)},
		{"Montant du retour", ledger.FormatMoney(d.SupplierReturn.ReturnAmount, currency)},
		{},
		{"Stock (cartons)", d.Stock.Aggregate},
	}
	return writeRows(f, SheetSummary, 1, rows)
}

func writeSales(f *excelize.File, sales []ledger.Sale, names map[ledger.SupermarketID]string) error {
	ordered := make([]ledger.Sale, len(sales))
	copy(ordered, sales)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Date.Before(ordered[j].Date) })

	rows := [][]interface{}{
		{"Date", "Supermarché", "Quantité", "Cartons", "Prix unitaire", "Total", "Reste à payer", "Payé", "Date de paiement"},
	}
	for _, s := range ordered {
		paidOn := ""
		if s.PaymentDate != nil {
			paidOn = s.PaymentDate.Format(dateLayout)
		}
		name := names[s.SupermarketID]
		if name == "" {
			name = string(s.SupermarketID)
		}
		rows = append(rows, []interface{}{
			s.Date.Format(dateLayout),
			name,
			s.Quantity,
			s.Cartons,
			s.PricePerUnit.InexactFloat64(),
			s.TotalValue.InexactFloat64(),
			s.RemainingAmount.InexactFloat64(),
			yesNo(s.IsPaid),
			paidOn,
		})
	}
	return writeRows(f, SheetSales, 1, rows)
}

func writeStock(f *excelize.File, movements []ledger.StockMovement, fragrances []ledger.Fragrance, summary StockSummary) error {
	rows := [][]interface{}{
		{"Date", "Type", "Quantité", "Solde", "Motif"},
	}
	for _, line := range stock.History(movements) {
		rows = append(rows, []interface{}{
			line.Movement.Date.Format(dateLayout),
			string(line.Movement.Type),
			line.Delta,
			line.Balance,
			line.Movement.Reason,
		})
	}

	rows = append(rows, []interface{}{}, []interface{}{"Parfum", "Cartons"})
	for _, fr := range fragrances {
		rows = append(rows, []interface{}{fr.Name, summary.Fragrances[fr.ID]})
	}
	return writeRows(f, SheetStock, 1, rows)
}

func writeRows(f *excelize.File, sheet string, startRow int, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, startRow+i)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func supermarketNames(sms []ledger.Supermarket) map[ledger.SupermarketID]string {
	names := make(map[ledger.SupermarketID]string, len(sms))
	for _, sm := range sms {
		names[sm.ID] = sm.Name
	}
	return names
}

func yesNo(b bool) string {
	if b {
		return "oui"
	}
	return "non"
}
