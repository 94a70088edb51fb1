// Package openapi встраивает OpenAPI-спецификацию optimizer-svc в бинарник.
package openapi

import _ "embed"

//go:embed api.swagger.json
var spec []byte

// MustGetSpec возвращает встроенную спецификацию API
func MustGetSpec() []byte {
	return spec
}
