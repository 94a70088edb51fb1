package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Префиксы пространств имён кэша
const (
	MatrixKeyPrefix = "matrix:"
	ResultKeyPrefix = "result:"
)

// MatrixHash вычисляет детерминированный хеш набора локаций для ключа
// кэша матриц. Строки имеют вид "id:lat:lon" с координатами, округлёнными
// до 5 знаков; порядок входа не важен - строки сортируются.
func MatrixHash(lines []string) string {
	sorted := make([]string, len(lines))
	copy(sorted, lines)
	sort.Strings(sorted)

	hash := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(hash[:16])
}

// CanonicalLocationLine форматирует строку локации для MatrixHash
func CanonicalLocationLine(id string, lat, lon float64) string {
	return fmt.Sprintf("%s:%.5f:%.5f", id, lat, lon)
}

// RequestHash вычисляет хеш нормализованного запроса оптимизации
func RequestHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// BuildMatrixKey строит ключ кэша матрицы расстояний
func BuildMatrixKey(hash string) string {
	return MatrixKeyPrefix + hash
}

// BuildResultKey строит ключ кэша результата оптимизации
func BuildResultKey(hash string) string {
	return ResultKeyPrefix + hash
}
