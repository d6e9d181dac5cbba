package chart

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/saaga0h/motion-gate/internal/motion"
)

// RenderHTML writes an interactive line chart page of a device's history
func RenderHTML(w io.Writer, deviceID string, history []motion.State) error {
	line := charts.NewLine()
	subtitle := fmt.Sprintf("device=%s samples=%d", deviceID, len(history))
	if n := len(history); n > 0 {
		subtitle += fmt.Sprintf(" state=%s", history[n-1].Label())
	}
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Motion " + deviceID, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Motion estimate", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "m/s²", NameLocation: "middle", NameGap: 35}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)

	xs := make([]string, 0, len(history))
	raw := make([]opts.LineData, 0, len(history))
	filtered := make([]opts.LineData, 0, len(history))
	rms := make([]opts.LineData, 0, len(history))
	used := make([]opts.LineData, 0, len(history))
	moving := make([]opts.LineData, 0, len(history))
	start := make([]opts.LineData, 0, len(history))
	stop := make([]opts.LineData, 0, len(history))

	var origin int64
	if len(history) > 0 {
		origin = history[0].Timestamp
	}
	for _, s := range history {
		xs = append(xs, strconv.FormatFloat(float64(s.Timestamp-origin)/1000, 'f', 2, 64))
		raw = append(raw, opts.LineData{Value: finiteOrZero(s.RawAccel)})
		filtered = append(filtered, opts.LineData{Value: finiteOrZero(s.FilteredAccel)})
		rms = append(rms, opts.LineData{Value: finiteOrZero(s.RMSAccel)})
		used = append(used, opts.LineData{Value: finiteOrZero(s.UsedAccel)})
		start = append(start, opts.LineData{Value: s.MotionStartThreshold})
		stop = append(stop, opts.LineData{Value: s.MotionStopThreshold})

		// Plotted at the start threshold so it shares the acceleration axis
		level := 0.0
		if s.IsMoving {
			level = s.MotionStartThreshold
		}
		moving = append(moving, opts.LineData{Value: level})
	}

	line.SetXAxis(xs).
		AddSeries(SeriesRaw, raw, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#969696"})).
		AddSeries(SeriesFiltered, filtered, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#1e6edc"})).
		AddSeries(SeriesRMS, rms, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#f08c14"})).
		AddSeries(SeriesUsed, used, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#d22828"})).
		AddSeries("moving", moving, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#2ca05a"})).
		AddSeries(SeriesStartThreshold, start, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"})).
		AddSeries(SeriesStopThreshold, stop, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render chart page: %w", err)
	}
	return nil
}
