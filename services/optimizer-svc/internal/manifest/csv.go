package manifest

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"routeopt/pkg/config"
)

// CSVGenerator генератор CSV маршрутных листов
type CSVGenerator struct {
	baseGenerator
}

// NewCSVGenerator создаёт новый генератор
func NewCSVGenerator(cfg config.ExportConfig) *CSVGenerator {
	return &CSVGenerator{baseGenerator{cfg: cfg}}
}

// Format возвращает формат генератора
func (g *CSVGenerator) Format() string { return FormatCSV }

// ContentType возвращает MIME-тип выгрузки
func (g *CSVGenerator) ContentType() string { return "text/csv" }

// csvWriter обёртка для отслеживания ошибок
type csvWriter struct {
	w   *csv.Writer
	err error
}

func (cw *csvWriter) Write(record []string) {
	if cw.err != nil {
		return
	}
	cw.err = cw.w.Write(record)
}

func (cw *csvWriter) Flush() {
	if cw.err != nil {
		return
	}
	cw.w.Flush()
	cw.err = cw.w.Error()
}

// Generate генерирует CSV: сводка, затем построчно остановки машин
func (g *CSVGenerator) Generate(_ context.Context, data *ManifestData) ([]byte, error) {
	var buf bytes.Buffer
	cw := &csvWriter{w: csv.NewWriter(&buf)}

	sol := data.Solution

	cw.Write([]string{"# " + g.title(data)})
	cw.Write([]string{g.company(), g.generatedAt(data).Format("2006-01-02 15:04")})
	cw.Write([]string{""})

	cw.Write([]string{"Status", string(sol.Status)})
	cw.Write([]string{"Total Distance (km)", g.formatFloat(sol.TotalDistance, 2)})
	cw.Write([]string{"Total Cost", g.formatFloat(sol.TotalCost, 2)})
	cw.Write([]string{"Vehicles Used", fmt.Sprintf("%d", sol.Statistics.VehiclesUsed)})
	cw.Write([]string{""})

	cw.Write([]string{"Vehicle", "Stop #", "Location", "Distance (km)", "Time (min)", "Arrival"})
	for _, route := range sol.DetailedRoutes {
		for i, stop := range route.Stops {
			cw.Write([]string{
				route.VehicleID,
				fmt.Sprintf("%d", i),
				stop.LocationID,
				g.formatFloat(stop.CumulativeDistance, 2),
				g.formatFloat(stop.CumulativeTime, 1),
				g.formatMinutes(stop.EstimatedArrivalMinutes),
			})
		}
	}

	if len(sol.UnassignedDeliveryIDs) > 0 {
		cw.Write([]string{""})
		cw.Write([]string{"Unassigned Deliveries"})
		for _, id := range sol.UnassignedDeliveryIDs {
			cw.Write([]string{id})
		}
	}

	cw.Flush()
	if cw.err != nil {
		return nil, fmt.Errorf("csv write error: %w", cw.err)
	}

	return buf.Bytes(), nil
}
