package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/tomkat-cr/abstractgo/internal/classify"
	"github.com/tomkat-cr/abstractgo/internal/dashboard"
	"github.com/tomkat-cr/abstractgo/internal/export"
	"github.com/tomkat-cr/abstractgo/internal/schedule"
	"github.com/tomkat-cr/abstractgo/internal/server"
	"github.com/tomkat-cr/abstractgo/internal/tui"
)

func newDashboardCmd(opts *rootOptions) *cobra.Command {
	var noAltScreen bool
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Open the interactive dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			format, err := a.cfg.ExportFormat()
			if err != nil {
				return err
			}
			sections, err := a.cfg.ExportSections()
			if err != nil {
				return err
			}
			out, err := a.cfg.OpenSink()
			if err != nil {
				return err
			}

			programOpts := []tea.ProgramOption{tea.WithContext(cmd.Context())}
			if !noAltScreen {
				programOpts = append(programOpts, tea.WithAltScreen())
			}
			program := tea.NewProgram(
				tui.New(tui.Config{
					Source:          a.dashboard,
					Exporter:        export.NewExporter(export.WithLogger(a.log)),
					Sink:            out,
					Classifier:      a.classifier,
					Extractor:       a.classifier,
					DefaultFormat:   format,
					DefaultSections: sections,
					Log:             a.log,
				}),
				programOpts...,
			)
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("program error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noAltScreen, "no-alt-screen", false, "disable the alternate screen buffer")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		sections  []string
		format    string
		outDir    string
		dateRange string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Fetch the dashboard and store one export artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			sel, err := selection(a.cfg.Export.Sections, a.cfg.Export.Format, sections, format)
			if err != nil {
				return err
			}
			sel.DateRange = dateRange
			if outDir != "" {
				a.cfg.Sink.Kind = "local"
				a.cfg.Export.OutputDir = outDir
			}
			out, err := a.cfg.OpenSink()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			art, err := export.NewExporter(export.WithLogger(a.log)).FetchAndExport(ctx, a.dashboard, sel)
			if err != nil {
				return err
			}
			loc, err := out.Put(ctx, art)
			if err != nil {
				return fmt.Errorf("store %s: %w", art.Name, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), loc)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&sections, "sections", nil, "sections to include (metrics, confusion-matrix, performance, distribution, analytics, classification-history or all)")
	cmd.Flags().StringVar(&format, "format", "", "pdf, excel, csv or json (default from export.format)")
	cmd.Flags().StringVar(&outDir, "out", "", "write to this directory instead of the configured sink")
	cmd.Flags().StringVar(&dateRange, "date-range", "", "date range label recorded in the export metadata")
	return cmd
}

// selection applies command-line overrides on top of the configured export
// defaults.
func selection(cfgSections []string, cfgFormat string, sections []string, format string) (export.Selection, error) {
	if len(sections) == 0 {
		sections = cfgSections
	}
	if format == "" {
		format = cfgFormat
	}
	parsed, err := dashboard.ParseSections(sections)
	if err != nil {
		return export.Selection{}, err
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return export.Selection{}, err
	}
	return export.Selection{Sections: parsed, Format: f}, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve export status and export requests over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			format, err := a.cfg.ExportFormat()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			gin.SetMode(gin.ReleaseMode)
			srv := server.New(server.Config{
				Source:        a.dashboard,
				Exporter:      export.NewExporter(export.WithLogger(a.log)),
				DefaultFormat: format,
				Log:           a.log,
			})

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			a.log.WithField("addr", addr).Info("listening")
			return srv.Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	return cmd
}

func newScheduleCmd(opts *rootOptions) *cobra.Command {
	var (
		spec string
		once bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Export the dashboard on a cron schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			sel, err := selection(a.cfg.Export.Sections, a.cfg.Export.Format, nil, "")
			if err != nil {
				return err
			}
			out, err := a.cfg.OpenSink()
			if err != nil {
				return err
			}
			if spec == "" {
				spec = a.cfg.Schedule.Cron
			}
			if once && spec == "" {
				// RunOnce never consults the schedule.
				spec = "0 0 * * *"
			}
			runner, err := schedule.New(schedule.Config{
				Spec:     spec,
				Source:   a.dashboard,
				Exporter: export.NewExporter(export.WithLogger(a.log)),
				Sink:     out,
				Sections: sel.Sections,
				Format:   sel.Format,
				Log:      a.log,
			})
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			if once {
				loc, err := runner.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), loc)
				return nil
			}
			if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&spec, "cron", "", "five-field cron expression (default from schedule.cron)")
	cmd.Flags().BoolVar(&once, "once", false, "export once now and exit")
	return cmd
}

func newClassifyCmd(opts *rootOptions) *cobra.Command {
	var (
		req    classify.Request
		file   string
		batch  string
		local  bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify an article by title and abstract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			if batch != "" {
				reqs, err := readBatch(batch)
				if err != nil {
					return err
				}
				results, err := a.classifier.BatchPredict(ctx, reqs)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), results)
				}
				writeBatch(cmd.OutOrStdout(), reqs, results)
				return nil
			}
			if file != "" {
				ex, err := extractor(a, local).ExtractPDF(ctx, file)
				if err != nil {
					return err
				}
				if req.Title == "" {
					req.Title = ex.Title
				}
				if req.Abstract == "" {
					req.Abstract = ex.Abstract
				}
			}

			res, err := a.classifier.Predict(ctx, req)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			writeResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "article title")
	cmd.Flags().StringVar(&req.Abstract, "abstract", "", "article abstract")
	cmd.Flags().StringVar(&file, "file", "", "PDF to extract a missing title or abstract from")
	cmd.Flags().BoolVar(&local, "local", false, "extract PDF text locally instead of calling the API")
	cmd.Flags().StringVar(&batch, "batch", "", "JSON file holding an array of {title, abstract} articles")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.MarkFlagsMutuallyExclusive("batch", "title")
	cmd.MarkFlagsMutuallyExclusive("batch", "abstract")
	cmd.MarkFlagsMutuallyExclusive("batch", "file")
	return cmd
}

func readBatch(path string) ([]classify.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	var reqs []classify.Request
	if err := json.Unmarshal(data, &reqs); err != nil {
		return nil, fmt.Errorf("parse batch %s: %w", path, err)
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("batch %s holds no articles", path)
	}
	return reqs, nil
}

func newExtractCmd(opts *rootOptions) *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "extract <file.pdf>",
		Short: "Extract title and abstract from a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			ex, err := extractor(a, local).ExtractPDF(ctx, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), ex)
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "extract text locally instead of calling the API")
	return cmd
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			if !a.api.Health(ctx) {
				return fmt.Errorf("API at %s is unreachable", a.api.BaseURL())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API at %s is healthy\n", a.api.BaseURL())
			return nil
		},
	}
}

func extractor(a *app, local bool) classify.Extractor {
	if local {
		return classify.LocalExtractor{}
	}
	return a.classifier
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeBatch(w io.Writer, reqs []classify.Request, results []classify.Result) {
	for i, res := range results {
		title := ""
		if i < len(reqs) {
			title = export.Truncate(reqs[i].Title, 50)
		}
		fmt.Fprintf(w, "%3d. %-16s %5.1f%% %-6s  %s\n", i+1, res.Category, res.Confidence*100, strings.ToUpper(string(res.Level)), title)
	}
}

func writeResult(w io.Writer, res classify.Result) {
	fmt.Fprintf(w, "Category:   %s\n", res.Category)
	fmt.Fprintf(w, "Confidence: %.1f%% (%s)\n", res.Confidence*100, strings.ToUpper(string(res.Level)))
	preds := append([]classify.Prediction(nil), res.AllPredictions...)
	sort.SliceStable(preds, func(i, j int) bool { return preds[i].Score > preds[j].Score })
	for _, p := range preds {
		fmt.Fprintf(w, "  %-20s %5.1f%%\n", p.Label, p.Score*100)
	}
}
