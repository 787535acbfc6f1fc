package api

import (
	"bytes"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/sensor.link/internal/sensor"
)

var axisNames = []string{"x", "y", "z"}

// componentName labels component i of a reading with n components.
func componentName(t sensor.Type, i, n int) string {
	if n == 1 {
		return t.String()
	}
	if i < len(axisNames) {
		return axisNames[i]
	}
	return strconv.Itoa(i)
}

// showReadingsChart renders the board window of one type as an HTML line
// chart, one series per component.
func (s *Server) showReadingsChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.board == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "receiver not running")
		return
	}

	name := r.URL.Query().Get("type")
	if name == "" {
		writeJSONError(w, http.StatusBadRequest, "missing 'type' parameter")
		return
	}
	t, err := sensor.ParseType(name)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	window := s.board.Window(t)
	x := make([]int, len(window))
	for i := range x {
		x[i] = i
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "sensor.link " + t.String(), Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: t.String(), Subtitle: fmt.Sprintf("last %d readings (%s)", len(window), t.Unit())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "sample"}),
		charts.WithYAxisOpts(opts.YAxis{Name: t.Unit(), Scale: opts.Bool(true)}),
	)
	line.SetXAxis(x)
	for c := 0; c < t.Arity(); c++ {
		data := make([]opts.LineData, len(window))
		for i, vals := range window {
			v := float64(vals[c])
			if math.IsNaN(v) || math.IsInf(v, 0) {
				// echarts treats "-" as a gap
				data[i] = opts.LineData{Value: "-"}
				continue
			}
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(componentName(t, c, t.Arity()), data)
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		log.Printf("failed to render chart: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
