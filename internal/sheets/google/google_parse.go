package google

import (
	"fmt"
	"strings"

	"expensetracker/internal/core"
)

// parseExpenseRows converts a values matrix (as returned by Sheets API) into
// the expenses of userID dated in year/month. Header rows, cleared rows and
// rows that fail to parse are skipped.
func parseExpenseRows(values [][]any, userID string, year, month int) []core.Expense {
	var out []core.Expense
	for _, row := range values {
		if len(row) < numCols {
			continue
		}
		cols := toStrings(row)
		if cols[colUser] != userID {
			continue
		}
		d, err := core.ParseDate(cols[colDate])
		if err != nil || d.Year() != year || int(d.Month()) != month {
			continue
		}
		cents, ok := parseEurosToCents(row[colAmount])
		if !ok || cents <= 0 {
			continue
		}
		out = append(out, core.Expense{
			ID:          cols[colID],
			UserID:      cols[colUser],
			Title:       cols[colTitle],
			Amount:      core.Money{Cents: cents},
			Category:    core.NormalizeCategory(cols[colCategory]),
			Date:        d,
			Description: cols[colDescription],
		})
	}
	core.SortExpenses(out)
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
