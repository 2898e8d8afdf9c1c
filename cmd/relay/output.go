package main

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/TFMV/relay/pkg/result"
)

// renderTable prints tbl as an aligned text table followed by a row count.
func renderTable(w io.Writer, tbl *result.Table) error {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetRowLine(false)
	table.SetBorder(false)
	table.SetAutoWrapText(true)
	table.SetHeader(tbl.Names())

	for i := 0; i < tbl.NumRows(); i++ {
		row := tbl.Row(i)
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = formatCell(v)
		}
		table.Append(cells)
	}
	table.Render()

	noun := "rows"
	if tbl.NumRows() == 1 {
		noun = "row"
	}
	_, err := fmt.Fprintf(w, "(%d %s)\n", tbl.NumRows(), noun)
	return err
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case []byte:
		return fmt.Sprintf("%x", x)
	default:
		return fmt.Sprint(x)
	}
}
