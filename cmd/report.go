package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/rfm-dashboard/internal/analysis"
	"github.com/KaramelBytes/rfm-dashboard/internal/charts"
	"github.com/KaramelBytes/rfm-dashboard/internal/utils"
)

var (
	repOutputPath string
	repFormat     string
	repView       string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Load the dataset once and print the dashboard aggregates",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(strings.TrimSpace(repFormat))
		switch format {
		case "", "markdown", "md":
			format = "markdown"
		case "table", "json":
		default:
			return fmt.Errorf("unsupported --format: %s (use markdown|table|json)", repFormat)
		}
		view, err := charts.ParseView(repView)
		if err != nil {
			return err
		}

		svc, err := newService(nil)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.HTTPTimeout())
		defer cancel()
		rep, ds, err := svc.Report(ctx)
		if err != nil {
			return err
		}
		spec := charts.BuildScatter(ds.Donors, charts.ScatterOptions{Log: view == charts.ViewDensity, Palette: svc.Profile().Palette})

		var buf bytes.Buffer
		switch format {
		case "markdown":
			buf.WriteString(rep.Markdown())
			fmt.Fprintf(&buf, "\n[VIEW]\n%s: %d donors plotted, %d omitted\n", view, spec.Points(), spec.Dropped)
		case "table":
			writeTables(&buf, rep, svc.Profile().PivotTitle, cfg.FloatPrecision)
			fmt.Fprintf(&buf, "\n%s: %d donors plotted, %d omitted\n", view, spec.Points(), spec.Dropped)
		case "json":
			out := struct {
				*analysis.Report
				View    string `json:"view"`
				Plotted int    `json:"plotted"`
				Omitted int    `json:"omitted"`
			}{rep, string(view), spec.Points(), spec.Dropped}
			enc := json.NewEncoder(&buf)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("encode json: %w", err)
			}
		}

		if repOutputPath != "" {
			if err := utils.SafeWriteFile(repOutputPath, buf.Bytes()); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote report to %s\n", repOutputPath)
		} else {
			if _, err := io.Copy(cmd.OutOrStdout(), &buf); err != nil {
				return err
			}
		}
		printWarnings(cmd.ErrOrStderr(), rep)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&repOutputPath, "output", "o", "", "write the report to this file instead of stdout")
	reportCmd.Flags().StringVar(&repFormat, "format", "markdown", "output format: markdown|table|json")
	reportCmd.Flags().StringVar(&repView, "view", "", `scatter view to summarize: "Segments" or "Show Density of Segments"`)
}

func displayOptions() analysis.Options {
	opt := analysis.DefaultOptions()
	opt.Unclassified = cfg.UnclassifiedBucket
	opt.Precision = cfg.FloatPrecision
	return opt
}

// writeTables renders the aggregates as terminal tables.
func writeTables(w io.Writer, rep *analysis.Report, pivotTitle string, prec int) {
	fmt.Fprintf(w, "Segment Descriptions and Database Count (%d rows, %d scored)\n", rep.Rows, rep.Scored)
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"Segment", "Label", "Description", "Customer Count", "Live Count"})
	for _, s := range rep.Segments {
		code, lookup := s.Code.String(), strconv.Itoa(s.LookupCount)
		if s.Unclassified() {
			code, lookup = "", ""
		}
		t.Append([]string{code, s.Label, s.Description, lookup, strconv.Itoa(s.LiveCount)})
	}
	t.Render()

	fmt.Fprintln(w, "\nSegments and Donation Channels")
	codes, channels, values := rep.ChannelMatrix()
	t = tablewriter.NewWriter(w)
	t.SetHeader(append([]string{"Segment"}, channels...))
	for i, c := range codes {
		row := []string{c.String()}
		for _, v := range values[i] {
			if math.IsNaN(v) {
				row = append(row, "")
				continue
			}
			row = append(row, analysis.FormatAmount(v, prec))
		}
		t.Append(row)
	}
	t.Render()

	if rep.Pivot != nil {
		if pivotTitle == "" {
			pivotTitle = "Segments by Subsegment"
		}
		fmt.Fprintf(w, "\n%s\n", pivotTitle)
		t = tablewriter.NewWriter(w)
		t.SetHeader(append([]string{"Segment"}, rep.Pivot.Columns...))
		for i, label := range rep.Pivot.Rows {
			row := []string{label}
			for j := range rep.Pivot.Columns {
				if n, ok := rep.Pivot.Cell(i, j); ok {
					row = append(row, strconv.Itoa(n))
				} else {
					row = append(row, "")
				}
			}
			t.Append(row)
		}
		t.Render()
	}
}

// printWarnings highlights lookup drift and unclassified donors.
func printWarnings(w io.Writer, rep *analysis.Report) {
	warn := color.New(color.FgYellow).SprintFunc()
	for _, msg := range rep.Warnings {
		fmt.Fprintf(w, "%s %s\n", warn("⚠ Warning:"), msg)
	}
}
