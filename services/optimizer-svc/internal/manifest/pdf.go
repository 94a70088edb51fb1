package manifest

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	marotocfg "github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"routeopt/pkg/config"
	"routeopt/pkg/domain"
)

// PDFGenerator генератор PDF маршрутных листов
type PDFGenerator struct {
	baseGenerator
}

// NewPDFGenerator создаёт новый генератор
func NewPDFGenerator(cfg config.ExportConfig) *PDFGenerator {
	return &PDFGenerator{baseGenerator{cfg: cfg}}
}

// Format возвращает формат генератора
func (g *PDFGenerator) Format() string { return FormatPDF }

// ContentType возвращает MIME-тип выгрузки
func (g *PDFGenerator) ContentType() string { return "application/pdf" }

// Стили
var (
	primaryColor   = &props.Color{Red: 52, Green: 152, Blue: 219}
	headerBgColor  = &props.Color{Red: 44, Green: 62, Blue: 80}
	lightGrayColor = &props.Color{Red: 236, Green: 240, Blue: 241}
	darkGrayColor  = &props.Color{Red: 127, Green: 140, Blue: 141}

	titleStyle = props.Text{
		Size:  22,
		Style: fontstyle.Bold,
		Align: align.Center,
		Color: headerBgColor,
	}

	h2Style = props.Text{
		Size:  14,
		Style: fontstyle.Bold,
		Color: headerBgColor,
		Top:   5,
	}

	normalStyle = props.Text{Size: 10}

	boldStyle = props.Text{
		Size:  10,
		Style: fontstyle.Bold,
	}

	smallStyle = props.Text{
		Size:  8,
		Color: darkGrayColor,
	}

	metricValueStyle = props.Text{
		Size:  18,
		Style: fontstyle.Bold,
		Align: align.Center,
		Color: primaryColor,
	}

	metricLabelStyle = props.Text{
		Size:  9,
		Align: align.Center,
		Color: darkGrayColor,
	}

	tableHeaderStyle = &props.Cell{
		BackgroundColor: primaryColor,
	}

	tableHeaderTextStyle = props.Text{
		Size:  9,
		Style: fontstyle.Bold,
		Color: &props.Color{Red: 255, Green: 255, Blue: 255},
		Align: align.Center,
	}

	tableCellStyle = &props.Cell{
		BorderType:  border.Bottom,
		BorderColor: lightGrayColor,
	}

	tableCellTextStyle = props.Text{
		Size:  9,
		Align: align.Center,
	}
)

// Generate генерирует PDF: шапка, сводные метрики, таблица остановок
// на каждую машину, невыполненные доставки
func (g *PDFGenerator) Generate(_ context.Context, data *ManifestData) ([]byte, error) {
	cfg := marotocfg.NewBuilder().
		WithPageNumber().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()

	m := maroto.New(cfg)

	g.addHeader(m, data)
	g.addTotals(m, data.Solution)
	for _, route := range data.Solution.DetailedRoutes {
		g.addVehicleSection(m, route)
	}
	g.addUnassigned(m, data.Solution)
	g.addFooter(m, data)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return doc.GetBytes(), nil
}

func (g *PDFGenerator) addHeader(m core.Maroto, data *ManifestData) {
	m.AddRow(15,
		text.NewCol(12, g.title(data), titleStyle),
	)
	m.AddRow(5,
		line.NewCol(12),
	)
	m.AddRow(6,
		text.NewCol(6, g.company(), smallStyle),
		text.NewCol(6, fmt.Sprintf("Generated: %s", g.generatedAt(data).Format("2006-01-02 15:04:05")),
			props.Text{Size: 8, Color: darkGrayColor, Align: align.Right}),
	)
	m.AddRow(8)
}

func (g *PDFGenerator) addTotals(m core.Maroto, sol *domain.Solution) {
	g.addSection(m, "Totals")

	cards := []struct {
		label string
		value string
	}{
		{"Total Distance", fmt.Sprintf("%.1f km", sol.TotalDistance)},
		{"Total Cost", g.formatFloat(sol.TotalCost, 2)},
		{"Vehicles", fmt.Sprintf("%d", sol.Statistics.VehiclesUsed)},
		{"Stops", fmt.Sprintf("%d", sol.Statistics.TotalStops)},
	}

	var cols []core.Col
	for _, card := range cards {
		cols = append(cols,
			col.New(3).Add(
				text.New(card.value, metricValueStyle),
				text.New(card.label, metricLabelStyle),
			),
		)
	}
	m.AddRow(20, cols...)
}

func (g *PDFGenerator) addVehicleSection(m core.Maroto, route domain.DetailedRoute) {
	g.addSection(m, fmt.Sprintf("Vehicle %s", route.VehicleID))

	m.AddRow(6,
		text.NewCol(6, fmt.Sprintf("Distance: %.1f km | Time: %.0f min | Load: %.0f%%",
			route.TotalDistance, route.TotalTime, route.CapacityUtilization*100), normalStyle),
		text.NewCol(6, fmt.Sprintf("Stops: %d", stopCount(route)),
			props.Text{Size: 10, Align: align.Right}),
	)
	m.AddRow(3)

	m.AddRow(8,
		text.NewCol(1, "#", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(5, "Location", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Distance", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Time", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Arrival", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
	)

	for i, stop := range route.Stops {
		m.AddRow(6,
			text.NewCol(1, fmt.Sprintf("%d", i), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(5, stop.LocationID, tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, g.formatFloat(stop.CumulativeDistance, 1), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, g.formatFloat(stop.CumulativeTime, 0), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, g.formatMinutes(stop.EstimatedArrivalMinutes), tableCellTextStyle).WithStyle(tableCellStyle),
		)
	}

	m.AddRow(5)
}

func (g *PDFGenerator) addUnassigned(m core.Maroto, sol *domain.Solution) {
	if len(sol.UnassignedDeliveryIDs) == 0 {
		return
	}

	g.addSection(m, "Unassigned Deliveries")
	for _, id := range sol.UnassignedDeliveryIDs {
		m.AddRow(5,
			text.NewCol(12, id, boldStyle),
		)
	}
}

func (g *PDFGenerator) addSection(m core.Maroto, title string) {
	m.AddRow(10,
		text.NewCol(12, title, h2Style),
	)
	m.AddRow(2,
		line.NewCol(12, props.Line{Color: primaryColor}),
	)
	m.AddRow(3)
}

func (g *PDFGenerator) addFooter(m core.Maroto, data *ManifestData) {
	m.AddRow(10)
	m.AddRow(2,
		line.NewCol(12, props.Line{Color: lightGrayColor}),
	)
	m.AddRow(6,
		text.NewCol(12,
			fmt.Sprintf("%s | %s", g.company(), g.generatedAt(data).Format("2006-01-02 15:04:05")),
			props.Text{Size: 8, Color: darkGrayColor, Align: align.Center},
		),
	)
}
