// Package report renders standalone HTML tracking reports. A report shows
// where each tracked face moved across the sequence and how crowded each
// frame was, using go-echarts so the output needs no server to view.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/facetrail/facetrail/internal/faceseq"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteHTML renders the tracking report for seq to w.
func WriteHTML(seq *faceseq.Sequence, w io.Writer) error {
	frames := seq.Frames()
	stats := seq.Summarize()

	subtitle := fmt.Sprintf("sequence=%s frames=%d faces=%d tracks=%d",
		seq.UID(), stats.Frames, stats.Faces, stats.Tracks)

	page := components.NewPage()
	page.AddCharts(
		trackScatter(frames, subtitle),
		facesPerFrameBar(frames, subtitle),
	)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// trackScatter plots the center of every face box, one series per track,
// so each person's path through the scene shows up as one color.
func trackScatter(frames []*faceseq.Frame, subtitle string) *charts.Scatter {
	byTrack := make(map[int][]opts.ScatterData)
	maxX, maxY := 1.0, 1.0

	for _, frame := range frames {
		for _, face := range frame.Faces {
			cx := float64(face.BBox.Min.X+face.BBox.Max.X) / 2
			cy := float64(face.BBox.Min.Y+face.BBox.Max.Y) / 2
			if cx > maxX {
				maxX = cx
			}
			if cy > maxY {
				maxY = cy
			}
			byTrack[face.ID] = append(byTrack[face.ID], opts.ScatterData{
				Value: []interface{}{cx, cy, frame.ID},
			})
		}
	}

	trackIDs := make([]int, 0, len(byTrack))
	for id := range byTrack {
		trackIDs = append(trackIDs, id)
	}
	sort.Ints(trackIDs)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Tracking Report", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Face Track Centers", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: maxX * 1.05, Name: "X (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: maxY * 1.05, Name: "Y (px)", NameLocation: "middle", NameGap: 30}),
	)

	for _, id := range trackIDs {
		scatter.AddSeries(fmt.Sprintf("face %d", id), byTrack[id],
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}),
		)
	}
	return scatter
}

// facesPerFrameBar charts how many faces were detected in each frame.
func facesPerFrameBar(frames []*faceseq.Frame, subtitle string) *charts.Bar {
	x := make([]string, 0, len(frames))
	y := make([]opts.BarData, 0, len(frames))
	for _, frame := range frames {
		x = append(x, fmt.Sprintf("%d", frame.ID))
		y = append(y, opts.BarData{Value: len(frame.Faces)})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Faces Per Frame", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
	)
	bar.SetXAxis(x).
		AddSeries("faces", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}
