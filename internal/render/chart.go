package render

import (
	"html/template"
	"io"
	"math"

	"github.com/couchcryptid/demand-siting/internal/domain"
	"gonum.org/v1/gonum/floats"
)

const (
	chartBarWidth   = 36.0
	chartBarGap     = 12.0
	chartPlotHeight = 360.0
	chartMarginLeft = 110.0
	chartMarginTop  = 50.0
	chartLabelSpace = 140.0
	chartMinWidth   = 640.0
	chartTicks      = 5
)

var chartTemplate = template.Must(template.New("chart").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 24px; }
.bar { fill: #636efa; }
.bar:hover { fill: #3945d6; }
.axis { stroke: #444; }
.grid { stroke: #ddd; }
text { font-size: 12px; fill: #333; }
.title { font-size: 18px; }
</style>
</head>
<body>
<svg xmlns="http://www.w3.org/2000/svg" width="{{.Width}}" height="{{.Height}}" role="img" aria-label="{{.Title}}">
<text class="title" x="{{.MarginLeft}}" y="28">{{.Title}}</text>
{{range .Ticks}}<line class="grid" x1="{{$.MarginLeft}}" x2="{{$.PlotRight}}" y1="{{printf "%.1f" .Y}}" y2="{{printf "%.1f" .Y}}"/>
<text x="{{printf "%.1f" $.TickLabelX}}" y="{{printf "%.1f" .Y}}" text-anchor="end" dominant-baseline="middle">{{.Label}}</text>
{{end}}<line class="axis" x1="{{.MarginLeft}}" x2="{{.PlotRight}}" y1="{{.Baseline}}" y2="{{.Baseline}}"/>
{{range .Bars}}<g>
<rect class="bar" x="{{printf "%.1f" .X}}" y="{{printf "%.1f" .Y}}" width="{{printf "%.1f" .W}}" height="{{printf "%.1f" .H}}"><title>Cidade: {{.City}}
Valor Total: {{.Value}}
Total de Pedidos: {{.Orders}}</title></rect>
<text x="{{printf "%.1f" .LabelX}}" y="{{printf "%.1f" $.LabelY}}" text-anchor="end" transform="rotate(-45 {{printf "%.1f" .LabelX}} {{printf "%.1f" $.LabelY}})">{{.City}}</text>
</g>
{{end}}<text x="{{printf "%.1f" .AxisTitleX}}" y="{{.AxisTitleY}}" text-anchor="middle">Cidade</text>
<text x="18" y="{{printf "%.1f" .MidY}}" text-anchor="middle" transform="rotate(-90 18 {{printf "%.1f" .MidY}})">Valor Total de Pedidos (R$)</text>
</svg>
</body>
</html>
`))

type chartBar struct {
	City       string
	Value      string
	Orders     int
	X, Y, W, H float64
	LabelX     float64
}

type chartTick struct {
	Y     float64
	Label string
}

type chartPage struct {
	Title                  string
	Width, Height          float64
	MarginLeft, PlotRight  float64
	Baseline               float64
	TickLabelX             float64
	LabelY                 float64
	AxisTitleX, AxisTitleY float64
	MidY                   float64
	Bars                   []chartBar
	Ticks                  []chartTick
}

// Chart writes an SVG bar chart of total value per city, largest first. Each
// bar's tooltip carries the order count.
func Chart(w io.Writer, demand []domain.GeocodedDemand) error {
	rows := ByValue(demand)

	values := make([]float64, len(rows))
	for i, r := range rows {
		values[i] = r.TotalValue
	}
	maxValue := 0.0
	if len(values) > 0 {
		maxValue = floats.Max(values)
	}
	scaleMax := niceCeil(maxValue)

	plotWidth := float64(len(rows))*(chartBarWidth+chartBarGap) + chartBarGap
	width := math.Max(chartMinWidth, chartMarginLeft+plotWidth+20)
	baseline := chartMarginTop + chartPlotHeight

	page := chartPage{
		Title:      "Valor Total de Pedidos por Cidade",
		Width:      width,
		Height:     baseline + chartLabelSpace + 30,
		MarginLeft: chartMarginLeft,
		PlotRight:  chartMarginLeft + plotWidth,
		Baseline:   baseline,
		TickLabelX: chartMarginLeft - 6,
		LabelY:     baseline + 14,
		AxisTitleX: chartMarginLeft + plotWidth/2,
		AxisTitleY: baseline + chartLabelSpace + 20,
		MidY:       chartMarginTop + chartPlotHeight/2,
	}

	for i := 0; i <= chartTicks; i++ {
		v := scaleMax * float64(i) / chartTicks
		page.Ticks = append(page.Ticks, chartTick{
			Y:     baseline - chartPlotHeight*float64(i)/chartTicks,
			Label: printer.Sprintf("%.0f", v),
		})
	}

	for i, r := range rows {
		h := 0.0
		if scaleMax > 0 {
			h = chartPlotHeight * r.TotalValue / scaleMax
		}
		x := chartMarginLeft + chartBarGap + float64(i)*(chartBarWidth+chartBarGap)
		page.Bars = append(page.Bars, chartBar{
			City:   CityLabel(r.City),
			Value:  formatMoney(r.TotalValue),
			Orders: r.OrderCount,
			X:      x,
			Y:      baseline - h,
			W:      chartBarWidth,
			H:      h,
			LabelX: x + chartBarWidth/2,
		})
	}

	return chartTemplate.Execute(w, page)
}

// niceCeil rounds v up to 1, 2 or 5 times a power of ten.
func niceCeil(v float64) float64 {
	if v <= 0 {
		return 1
	}
	exp := math.Pow(10, math.Floor(math.Log10(v)))
	for _, m := range []float64{1, 2, 5, 10} {
		if v <= m*exp {
			return m * exp
		}
	}
	return 10 * exp
}
