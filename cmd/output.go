package cmd

import (
	"fmt"
	"os"
	"strconv"

	"catalog-sync/core/scan"

	"github.com/olekukonko/tablewriter"
)

// renderTable prints rows under header to stdout.
func renderTable(header []string, rows [][]string) error {
	table := tablewriter.NewWriter(os.Stdout)
	cols := make([]any, len(header))
	for i, h := range header {
		cols[i] = h
	}
	table.Header(cols...)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// printSummary prints the counters of a finished operation.
func printSummary(sum scan.Summary) error {
	rows := [][]string{
		{"Kind", string(sum.Kind)},
		{"Run", sum.RunID},
		{"Checked", strconv.Itoa(sum.Checked)},
		{"Found", strconv.Itoa(sum.Found)},
		{"Inactive", strconv.Itoa(sum.Inactive)},
		{"Missing", strconv.Itoa(sum.Missing)},
		{"Errors", strconv.Itoa(sum.Errors)},
		{"Added", strconv.Itoa(sum.Added)},
		{"Updated", strconv.Itoa(sum.Updated)},
		{"Removed", strconv.Itoa(sum.Removed)},
		{"Records", fmt.Sprintf("%d -> %d", sum.Before, sum.After)},
		{"Batches", strconv.Itoa(sum.Batches)},
		{"Duration", sum.FinishedAt.Sub(sum.StartedAt).Round(1e6).String()},
	}
	if sum.StageFailures > 0 {
		rows = append(rows, []string{"Stage failures", strconv.Itoa(sum.StageFailures)})
	}
	for _, r := range sum.Ranges {
		rows = append(rows, []string{"Range", r.String()})
	}
	if sum.Canceled {
		rows = append(rows, []string{"Canceled", "yes"})
	}
	return renderTable([]string{"Field", "Value"}, rows)
}
