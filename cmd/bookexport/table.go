package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	bookexport "github.com/alnah/go-bookexport"
	"github.com/alnah/go-bookexport/internal/validate"
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
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
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

// renderSummary renders one row per requested format: built artifacts with
// their size and validation outcome, then skipped formats.
func renderSummary(report *bookexport.Report, results []validate.Result) string {
	headers := []string{"Format", "File", "Size", "Validation"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}

	rows := make([][]string, 0, len(report.Artifacts)+len(report.Skipped))
	for i, a := range report.Artifacts {
		validation := "skipped"
		if i < len(results) {
			validation = validationLabel(results[i])
		}
		rows = append(rows, []string{a.Format, filepath.Base(a.Path), fileSize(a.Path), validation})
	}
	for _, name := range report.Skipped {
		rows = append(rows, []string{name, "-", "-", "not built"})
	}

	footer := fmt.Sprintf("%s · %s · %s", report.Basename, report.Lang, report.Duration.Round(time.Millisecond))
	return renderTable(headers, rows, aligns) + "\n" + footer
}

func validationLabel(r validate.Result) string {
	if r.OK() {
		if len(r.Warnings) > 0 {
			return fmt.Sprintf("ok (%d warnings)", len(r.Warnings))
		}
		return "ok"
	}
	return strings.TrimSpace(r.Code.String() + ": " + r.Summary)
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "-"
	}
	return humanSize(info.Size())
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
