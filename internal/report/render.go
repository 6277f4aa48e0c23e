// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"go.yaml.in/yaml/v3"
)

// Format selects how a summary is written.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Write renders s to w in the given format.
func Write(w io.Writer, s Summary, format Format) error {
	switch format {
	case FormatTable, "":
		return writeTable(w, s)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encoding summary: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q: use table, json or yaml", format)
	}
}

func writeTable(w io.Writer, s Summary) error {
	fmt.Fprintf(w, "JSON: %s\n\n", s.Path)

	counts := table.NewWriter()
	counts.SetOutputMirror(w)
	counts.SetStyle(table.StyleRounded)
	counts.AppendHeader(table.Row{"Metric", "Count"})
	counts.AppendRows([]table.Row{
		{"Packages", s.Packages},
		{"Categories", s.Categories},
		{"Bots total", s.Bots},
		{"About (non-empty)", s.WithAbout},
		{"Limits (non-empty)", s.WithLimits},
		{"Example (non-empty)", s.WithExample},
		{"Bots with at least one link", s.WithLink},
		{"Bots missing links", s.WithoutLink()},
	})
	counts.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	counts.Render()

	if len(s.MissingLinks) > 0 {
		fmt.Fprintln(w, "\nMissing link samples:")
		for _, title := range s.MissingLinks {
			fmt.Fprintf(w, " - %s\n", title)
		}
	}

	if len(s.Samples) > 0 {
		fmt.Fprintln(w, "\nSamples:")
		samples := table.NewWriter()
		samples.SetOutputMirror(w)
		samples.SetStyle(table.StyleRounded)
		samples.AppendHeader(table.Row{"#", "Bot", "About", "Limits", "Example", "Link"})
		for i, sm := range s.Samples {
			samples.AppendRow(table.Row{strconv.Itoa(i + 1), sm.Title, sm.About, sm.Limits, sm.Example, sm.Link})
		}
		samples.SetColumnConfigs([]table.ColumnConfig{
			{Number: 3, WidthMax: 40},
			{Number: 4, WidthMax: 40},
			{Number: 5, WidthMax: 40},
		})
		samples.Render()
	}
	return nil
}
