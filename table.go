package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"trackbridge/internal/models"
	"trackbridge/internal/pipeline"
	"trackbridge/internal/quality"
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

func renderQualityReport(r quality.Report) string {
	rows := [][]string{
		{"Total", strconv.Itoa(r.Total)},
		{"Valid", strconv.Itoa(r.Valid)},
		{"Warned", strconv.Itoa(r.Warned)},
		{"Invalid", strconv.Itoa(r.Invalid)},
		{"Average score", fmt.Sprintf("%.1f", r.AverageScore)},
	}
	for _, reason := range quality.SortedKeys(r.RejectionReasons) {
		rows = append(rows, []string{"Rejected: " + reason, strconv.Itoa(r.RejectionReasons[reason])})
	}
	for _, issue := range quality.SortedKeys(r.IssueCounts) {
		rows = append(rows, []string{"Issue: " + issue, strconv.Itoa(r.IssueCounts[issue])})
	}
	for _, warning := range quality.SortedKeys(r.WarningCounts) {
		rows = append(rows, []string{"Warning: " + warning, strconv.Itoa(r.WarningCounts[warning])})
	}
	return renderTable([]string{"Quality", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}

func renderMatches(items []pipeline.Item) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		m := item.Match
		rows = append(rows, []string{
			m.Track.FullTitle(),
			m.Track.Artist,
			matchedName(m),
			fmt.Sprintf("%.2f", m.Confidence),
			matchStatus(item),
		})
	}
	return renderTable(
		[]string{"Title", "Artist", "Match", "Confidence", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func renderStats(s pipeline.Stats) string {
	rows := [][]string{
		{"Records", strconv.Itoa(s.Records)},
		{"Accepted", strconv.Itoa(s.Accepted)},
		{"Matched", strconv.Itoa(s.Matched)},
		{"Unmatched", strconv.Itoa(s.Unmatched)},
		{"From cache", strconv.Itoa(s.Cached)},
		{"Duplicates", strconv.Itoa(s.Duplicates)},
		{"To add", strconv.Itoa(s.ToAdd)},
	}
	return renderTable([]string{"Run", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}

func matchedName(m models.MatchResult) string {
	if m.Candidate == nil {
		return ""
	}
	return strings.TrimSpace(m.Candidate.Name + " - " + m.Candidate.ArtistNames())
}

func matchStatus(item pipeline.Item) string {
	switch {
	case item.Match.Error != "":
		return "error: " + item.Match.Error
	case !item.Match.Matched():
		return "unmatched"
	case item.Duplicate.IsDuplicate:
		return "duplicate (" + string(item.Duplicate.Method) + ")"
	case item.Add:
		return "add"
	default:
		return "repeat"
	}
}
