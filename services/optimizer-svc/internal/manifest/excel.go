package manifest

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"routeopt/pkg/config"
	"routeopt/pkg/domain"
)

// ExcelGenerator генератор XLSX маршрутных листов
type ExcelGenerator struct {
	baseGenerator
}

// NewExcelGenerator создаёт новый генератор
func NewExcelGenerator(cfg config.ExportConfig) *ExcelGenerator {
	return &ExcelGenerator{baseGenerator{cfg: cfg}}
}

// Format возвращает формат генератора
func (g *ExcelGenerator) Format() string { return FormatXLSX }

// ContentType возвращает MIME-тип выгрузки
func (g *ExcelGenerator) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Generate генерирует XLSX: сводный лист плюс лист на каждую машину
func (g *ExcelGenerator) Generate(_ context.Context, data *ManifestData) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	g.writeSummarySheet(f, data)
	for _, route := range data.Solution.DetailedRoutes {
		g.writeVehicleSheet(f, route)
	}

	// Удаляем дефолтный лист после создания остальных
	f.DeleteSheet("Sheet1")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write xlsx: %w", err)
	}

	return buf.Bytes(), nil
}

func (g *ExcelGenerator) writeSummarySheet(f *excelize.File, data *ManifestData) {
	sheetName := "Summary"
	f.NewSheet(sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	sol := data.Solution
	row := 1

	f.SetCellValue(sheetName, cellAddr("A", row), g.title(data))
	f.MergeCell(sheetName, cellAddr("A", row), cellAddr("D", row))
	row++

	f.SetCellValue(sheetName, cellAddr("A", row), g.company())
	f.SetCellValue(sheetName, cellAddr("B", row), g.generatedAt(data).Format("2006-01-02 15:04"))
	row += 2

	f.SetCellValue(sheetName, cellAddr("A", row), "Totals")
	f.SetCellStyle(sheetName, cellAddr("A", row), cellAddr("B", row), headerStyle)
	row++

	totals := []struct {
		label string
		value any
	}{
		{"Status", string(sol.Status)},
		{"Total Distance (km)", sol.TotalDistance},
		{"Total Cost", sol.TotalCost},
		{"Vehicles Used", sol.Statistics.VehiclesUsed},
		{"Stops", sol.Statistics.TotalStops},
		{"Deliveries Assigned", sol.Statistics.DeliveriesAssigned},
		{"Deliveries Unassigned", len(sol.UnassignedDeliveryIDs)},
	}
	for _, t := range totals {
		f.SetCellValue(sheetName, cellAddr("A", row), t.label)
		f.SetCellValue(sheetName, cellAddr("B", row), t.value)
		row++
	}
	row++

	f.SetCellValue(sheetName, cellAddr("A", row), "Vehicle")
	f.SetCellValue(sheetName, cellAddr("B", row), "Stops")
	f.SetCellValue(sheetName, cellAddr("C", row), "Distance (km)")
	f.SetCellValue(sheetName, cellAddr("D", row), "Load %")
	f.SetCellStyle(sheetName, cellAddr("A", row), cellAddr("D", row), headerStyle)
	row++

	for _, route := range sol.DetailedRoutes {
		f.SetCellValue(sheetName, cellAddr("A", row), route.VehicleID)
		f.SetCellValue(sheetName, cellAddr("B", row), stopCount(route))
		f.SetCellValue(sheetName, cellAddr("C", row), route.TotalDistance)
		f.SetCellValue(sheetName, cellAddr("D", row), route.CapacityUtilization*100)
		row++
	}

	if len(sol.UnassignedDeliveryIDs) > 0 {
		row++
		f.SetCellValue(sheetName, cellAddr("A", row), "Unassigned Deliveries")
		f.SetCellStyle(sheetName, cellAddr("A", row), cellAddr("A", row), headerStyle)
		row++
		for _, id := range sol.UnassignedDeliveryIDs {
			f.SetCellValue(sheetName, cellAddr("A", row), id)
			row++
		}
	}

	f.SetColWidth(sheetName, "A", "A", 26)
	f.SetColWidth(sheetName, "B", "D", 16)
}

func (g *ExcelGenerator) writeVehicleSheet(f *excelize.File, route domain.DetailedRoute) {
	sheetName := route.VehicleID
	f.NewSheet(sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	row := 1
	f.SetCellValue(sheetName, cellAddr("A", row), fmt.Sprintf("Vehicle %s", route.VehicleID))
	f.MergeCell(sheetName, cellAddr("A", row), cellAddr("E", row))
	row += 2

	f.SetCellValue(sheetName, cellAddr("A", row), "#")
	f.SetCellValue(sheetName, cellAddr("B", row), "Location")
	f.SetCellValue(sheetName, cellAddr("C", row), "Distance (km)")
	f.SetCellValue(sheetName, cellAddr("D", row), "Time (min)")
	f.SetCellValue(sheetName, cellAddr("E", row), "Arrival")
	f.SetCellStyle(sheetName, cellAddr("A", row), cellAddr("E", row), headerStyle)
	row++

	for i, stop := range route.Stops {
		f.SetCellValue(sheetName, cellAddr("A", row), i)
		f.SetCellValue(sheetName, cellAddr("B", row), stop.LocationID)
		f.SetCellValue(sheetName, cellAddr("C", row), stop.CumulativeDistance)
		f.SetCellValue(sheetName, cellAddr("D", row), stop.CumulativeTime)
		f.SetCellValue(sheetName, cellAddr("E", row), g.formatMinutes(stop.EstimatedArrivalMinutes))
		row++
	}
	row++

	f.SetCellValue(sheetName, cellAddr("A", row), "Route Distance (km)")
	f.SetCellValue(sheetName, cellAddr("B", row), route.TotalDistance)
	row++
	f.SetCellValue(sheetName, cellAddr("A", row), "Route Time (min)")
	f.SetCellValue(sheetName, cellAddr("B", row), route.TotalTime)
	row++
	f.SetCellValue(sheetName, cellAddr("A", row), "Capacity Utilization")
	f.SetCellValue(sheetName, cellAddr("B", row), fmt.Sprintf("%.1f%%", route.CapacityUtilization*100))

	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "B", "E", 16)
}

func cellAddr(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
