package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"f1telemetry/internal/diagnostics"
	"f1telemetry/internal/metric"
	"f1telemetry/internal/model"
	"f1telemetry/internal/render"
	"f1telemetry/internal/service"
)

type sessionFlags struct {
	year    int
	round   string
	session string
}

func (f *sessionFlags) bind(cmd *cobra.Command, withSession bool) {
	cmd.Flags().IntVarP(&f.year, "year", "y", 0, "season")
	cmd.Flags().StringVarP(&f.round, "round", "r", "", "round number or event name")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("round")
	if withSession {
		cmd.Flags().StringVarP(&f.session, "session", "s", "R", "session type: R or Q")
	}
}

func (f *sessionFlags) ref() (service.SessionRef, error) {
	st, err := model.ParseSessionType(f.session)
	if err != nil {
		return service.SessionRef{}, err
	}
	return service.SessionRef{Year: f.year, Round: f.round, Session: st}, nil
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	return t
}

func newScheduleCmd(opts *globalOptions) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "list the events of a season",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd.Context(), cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()
			events, err := rt.analyzer.Schedule(cmd.Context(), year)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Round", "Location", "Event"})
			for _, ev := range events {
				t.AppendRow(table.Row{ev.RoundNumber, ev.Location, ev.EventName})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&year, "year", "y", 0, "season")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func newRacingLineCmd(opts *globalOptions) *cobra.Command {
	var sf sessionFlags
	var driver, channels, out string
	cmd := &cobra.Command{
		Use:   "racing-line",
		Short: "color a driver's fastest lap by a telemetry channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := sf.ref()
			if err != nil {
				return err
			}
			list := parseChannelList(channels)
			if out != "" && len(list) > 1 && outputFormat(out) != "json" {
				return errors.New("image output takes a single channel")
			}
			rt, err := opts.open(cmd.Context(), cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()
			outcomes, err := rt.analyzer.RacingLines(cmd.Context(), ref, driver, list)
			if err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Channel", "Column", "Points", "Min", "Max", "Note"})
			var figures []render.Figure
			for _, o := range outcomes {
				if o.Err != nil {
					t.AppendRow(table.Row{o.Channel.Name, "-", 0, "-", "-", errorMessage(o.Err)})
					continue
				}
				r := o.View.Result
				t.AppendRow(table.Row{o.Channel.Name, r.Column, r.Len(), fmt.Sprintf("%.1f", r.Min), fmt.Sprintf("%.1f", r.Max), warningText(o.View.Warnings)})
				figures = append(figures, o.View.Figure)
			}
			t.Render()
			if out == "" {
				return nil
			}
			if len(figures) == 0 {
				return errors.New("no racing line to write")
			}
			if len(figures) == 1 {
				return writeFigure(out, figures[0], figures[0])
			}
			return writeFigure(out, figures[0], figures)
		},
	}
	sf.bind(cmd, true)
	cmd.Flags().StringVarP(&driver, "driver", "d", "", "driver code")
	cmd.Flags().StringVarP(&channels, "channel", "c", "Speed", "channels, comma separated: Speed, Throttle, Brake, Gear, DRS")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the chart to a .svg, .png or .json file")
	_ = cmd.MarkFlagRequired("driver")
	return cmd
}

func newCompareCmd(opts *globalOptions) *cobra.Command {
	var sf sessionFlags
	var drivers, out string
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "overlay the fastest laps of several drivers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := sf.ref()
			if err != nil {
				return err
			}
			rt, err := opts.open(cmd.Context(), cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()
			view, err := rt.analyzer.Compare(cmd.Context(), ref, service.ParseDrivers(drivers))
			if err != nil {
				return err
			}
			printOverlay(cmd.OutOrStdout(), view)
			if out == "" {
				return nil
			}
			return writeFigure(out, view.Figure, view.Figure)
		},
	}
	sf.bind(cmd, true)
	cmd.Flags().StringVarP(&drivers, "drivers", "d", "", "driver codes, comma separated")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the chart to a .svg, .png or .json file")
	_ = cmd.MarkFlagRequired("drivers")
	return cmd
}

func newSectorsCmd(opts *globalOptions) *cobra.Command {
	var sf sessionFlags
	var driver, out string
	cmd := &cobra.Command{
		Use:   "sectors",
		Short: "per-lap sector deltas against the driver's best sectors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := sf.ref()
			if err != nil {
				return err
			}
			rt, err := opts.open(cmd.Context(), cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()
			view, err := rt.analyzer.SectorDeltas(cmd.Context(), ref, driver)
			if err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout())
			t.SetTitle("Sector-wise Lap Delta - %s", view.Driver)
			t.AppendHeader(table.Row{"Lap", "S1", "S2", "S3"})
			for _, d := range view.Deltas {
				t.AppendRow(table.Row{d.LapNumber, seconds(d.S1), seconds(d.S2), seconds(d.S3)})
			}
			b := view.Best
			t.AppendFooter(table.Row{"Best", fmt.Sprintf("%.3f (L%d)", b.S1, b.S1Lap), fmt.Sprintf("%.3f (L%d)", b.S2, b.S2Lap), fmt.Sprintf("%.3f (L%d)", b.S3, b.S3Lap)})
			t.Render()
			fmt.Fprintf(cmd.OutOrStdout(), "Theoretical best: %.3fs\n", b.Theoretical())

			switch {
			case out == "":
				return nil
			case outputFormat(out) == "png":
				cfg := rt.cfg.Get()
				var buf bytes.Buffer
				size := render.Options{Width: cfg.Render.SectorWidth, Height: cfg.Render.SectorHeight}
				if err := render.WriteSectorPNG(&buf, view.Driver, view.Deltas, size); err != nil {
					return err
				}
				return os.WriteFile(out, buf.Bytes(), 0o644)
			case outputFormat(out) == "json":
				return writeJSONFile(out, view.Figure)
			}
			return fmt.Errorf("sector deltas are written as .png or .json, not %s", filepath.Ext(out))
		},
	}
	sf.bind(cmd, true)
	cmd.Flags().StringVarP(&driver, "driver", "d", "", "driver code")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the chart to a .png or .json file")
	_ = cmd.MarkFlagRequired("driver")
	return cmd
}

func newQualVsRaceCmd(opts *globalOptions) *cobra.Command {
	var sf sessionFlags
	var driver, out string
	cmd := &cobra.Command{
		Use:   "qual-vs-race",
		Short: "overlay a driver's fastest qualifying and race laps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd.Context(), cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()
			view, err := rt.analyzer.QualifyingVsRace(cmd.Context(), sf.year, sf.round, driver)
			if err != nil {
				return err
			}
			printOverlay(cmd.OutOrStdout(), view)
			if out == "" {
				return nil
			}
			return writeFigure(out, view.Figure, view.Figure)
		},
	}
	sf.bind(cmd, false)
	cmd.Flags().StringVarP(&driver, "driver", "d", "", "driver code")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the chart to a .svg, .png or .json file")
	_ = cmd.MarkFlagRequired("driver")
	return cmd
}

func printOverlay(out io.Writer, view service.ComparisonView) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Trace", "Color", "Points"})
	for _, tr := range view.Overlay.Traces {
		label := tr.Label
		if tr.Dashed {
			label += " (dashed)"
		}
		t.AppendRow(table.Row{label, tr.Color, tr.Path.Len()})
	}
	t.Render()
	for _, w := range view.Warnings {
		fmt.Fprintln(out, "warning:", w.Message)
	}
}

// writeFigure writes fig as an image, or body as JSON, by the file extension.
func writeFigure(path string, fig render.Figure, body any) error {
	var buf bytes.Buffer
	switch outputFormat(path) {
	case "svg":
		if err := render.WriteSVG(&buf, fig); err != nil {
			return err
		}
	case "png":
		if err := render.WritePNG(&buf, fig); err != nil {
			return err
		}
	case "json":
		return writeJSONFile(path, body)
	default:
		return fmt.Errorf("unsupported output %q: use .svg, .png or .json", filepath.Ext(path))
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func writeJSONFile(path string, body any) error {
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func outputFormat(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

func parseChannelList(value string) []metric.Channel {
	var out []metric.Channel
	for _, name := range strings.Split(value, ",") {
		if strings.TrimSpace(name) != "" {
			out = append(out, metric.ParseOrSpeed(name))
		}
	}
	if len(out) == 0 {
		out = append(out, metric.Speed)
	}
	return out
}

func errorMessage(err error) string {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		return svcErr.Diagnostic.Message
	}
	return err.Error()
}

func warningText(ws []diagnostics.Diagnostic) string {
	msgs := make([]string, 0, len(ws))
	for _, w := range ws {
		msgs = append(msgs, w.Message)
	}
	return strings.Join(msgs, "; ")
}

func seconds(v float64) string {
	return fmt.Sprintf("+%.3f", v)
}
