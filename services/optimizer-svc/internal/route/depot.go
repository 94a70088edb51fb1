// Package route превращает сырые маршруты решателя в развёрнутый
// результат: определяет депо, разворачивает сегменты по кратчайшим путям
// и агрегирует статистику решения.
package route

import (
	"routeopt/pkg/apperror"
	"routeopt/pkg/domain"
)

// ResolveDepot возвращает депо задачи и его индекс в списке локаций.
// Депо - первая локация с флагом is_depot, иначе первая локация списка.
func ResolveDepot(locations []domain.Location) (*domain.Location, int, error) {
	if len(locations) == 0 {
		return nil, -1, apperror.New(apperror.CodeInvalidInput, "no locations to resolve a depot from")
	}
	for i := range locations {
		if locations[i].IsDepot {
			return &locations[i], i, nil
		}
	}
	return &locations[0], 0, nil
}
