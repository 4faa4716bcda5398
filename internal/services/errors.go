package services

import (
	"errors"
	"fmt"

	"github.com/parasum-digital/sku-registro/internal/models"
)

// ErrNotConfigured indica que faltan las credenciales de Supabase; ninguna
// operación remota se intenta mientras el backend no esté configurado.
var ErrNotConfigured = errors.New("supabase no configurado")

// ValidationError indica campos obligatorios faltantes en el formulario.
// No se intenta ninguna escritura.
type ValidationError struct {
	Campos []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("campos obligatorios incompletos: %v", e.Campos)
}

// DuplicateError indica que el par (sku, nave) ya existe. La submisión se
// aborta antes de cualquier escritura.
type DuplicateError struct {
	SKU  string
	Nave models.Nave
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("el SKU %s ya existe en %s", e.SKU, e.Nave)
}

// PersistenceError indica que el backend falló en un lookup o insert.
// El formulario queda editable y re-enviable; el mensaje del backend
// se propaga al usuario.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("error al guardar (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
