// Package manifest выгружает решённые маршруты в виде маршрутных листов
// для водителей: XLSX, PDF и CSV.
package manifest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"routeopt/pkg/apperror"
	"routeopt/pkg/config"
	"routeopt/pkg/domain"
)

// Форматы выгрузки
const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
	FormatCSV  = "csv"
)

// ManifestData данные для генерации маршрутного листа
type ManifestData struct {
	SolveID     string
	Name        string
	Solution    *domain.Solution
	GeneratedAt time.Time
}

// Generator интерфейс генератора маршрутных листов
type Generator interface {
	Generate(ctx context.Context, data *ManifestData) ([]byte, error)
	Format() string
	ContentType() string
}

// ForFormat возвращает генератор по имени формата
func ForFormat(format string, cfg config.ExportConfig) (Generator, error) {
	switch strings.ToLower(format) {
	case FormatXLSX, "excel":
		return NewExcelGenerator(cfg), nil
	case FormatPDF:
		return NewPDFGenerator(cfg), nil
	case FormatCSV, "":
		return NewCSVGenerator(cfg), nil
	default:
		return nil, apperror.New(apperror.CodeInvalidInput,
			fmt.Sprintf("unsupported manifest format: %q", format))
	}
}

// baseGenerator общие утилиты генераторов
type baseGenerator struct {
	cfg config.ExportConfig
}

// title возвращает заголовок листа
func (b *baseGenerator) title(data *ManifestData) string {
	if data.Name != "" {
		return data.Name
	}
	return "Route Manifest"
}

// company возвращает название компании из конфигурации
func (b *baseGenerator) company() string {
	if b.cfg.CompanyName != "" {
		return b.cfg.CompanyName
	}
	return "RouteOpt"
}

// formatFloat форматирует число с заданной точностью
func (b *baseGenerator) formatFloat(v float64, precision int) string {
	return fmt.Sprintf("%.*f", precision, v)
}

// formatMinutes форматирует минуты от начала смены в ЧЧ:ММ
func (b *baseGenerator) formatMinutes(min *float64) string {
	if min == nil {
		return "-"
	}
	total := int(*min)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// generatedAt возвращает метку генерации
func (b *baseGenerator) generatedAt(data *ManifestData) time.Time {
	if data.GeneratedAt.IsZero() {
		return time.Now()
	}
	return data.GeneratedAt
}

// stopCount возвращает число остановок маршрута без конечных точек
func stopCount(route domain.DetailedRoute) int {
	n := len(route.Stops) - 2
	if n < 0 {
		n = 0
	}
	return n
}
