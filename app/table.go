package app

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/htol/shelf/book"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// renderBooks renders books as a table. With withIndex the first column is
// the view index accepted by toggle.
func renderBooks(books []book.Book, withIndex bool) string {
	headers := []string{"Title", "Author", "Year", "Genre", "Status"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft}
	if withIndex {
		headers = append([]string{"#"}, headers...)
		aligns = append([]columnAlignment{alignRight}, aligns...)
	}

	rows := make([][]string, 0, len(books))
	for i, b := range books {
		status := book.StatusUnread.String()
		if b.Read {
			status = book.StatusRead.String()
		}
		row := []string{b.Title, b.Author, strconv.Itoa(b.Year), b.Genre, status}
		if withIndex {
			row = append([]string{strconv.Itoa(i)}, row...)
		}
		rows = append(rows, row)
	}
	return renderTable(headers, rows, aligns)
}
