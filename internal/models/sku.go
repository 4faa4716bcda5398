package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Nave representa el depósito donde se almacena el SKU
type Nave string

const (
	NavePL2 Nave = "PL2"
	NavePL3 Nave = "PL3"
)

// Valid indica si la nave es una de las conocidas
func (n Nave) Valid() bool {
	return n == NavePL2 || n == NavePL3
}

// SKURecord representa una fila de maestro_sku
type SKURecord struct {
	ID                uuid.UUID `json:"id" db:"id"`
	SKU               string    `json:"sku" db:"sku"`
	Descripcion       string    `json:"descripcion" db:"descripcion"`
	Nave              Nave      `json:"nave" db:"nave"`
	LargoCm           float64   `json:"largo_cm" db:"largo_cm"`
	AnchoCm           float64   `json:"ancho_cm" db:"ancho_cm"`
	AltoCm            float64   `json:"alto_cm" db:"alto_cm"`
	PesoKg            float64   `json:"peso_kg" db:"peso_kg"`
	MaxApilado        int       `json:"max_apilado" db:"max_apilado"`
	SePalletiza       bool      `json:"se_palletiza" db:"se_palletiza"`
	UnidadesPorPallet *int      `json:"unidades_por_pallet" db:"unidades_por_pallet"`
	FotoURL           *string   `json:"foto_url" db:"foto_url"`
	FechaRegistro     time.Time `json:"fecha_registro" db:"fecha_registro"`
}

// CreateSKURequest representa el alta de un SKU tal como llega del
// formulario móvil. Los campos numéricos viajan como texto: un valor
// vacío o no numérico se coerciona a 0 (leniencia intencional del
// formulario, no un bug).
type CreateSKURequest struct {
	SKU            string `form:"sku" json:"sku"`
	Descripcion    string `form:"descripcion" json:"descripcion"`
	Nave           string `form:"nave" json:"nave"`
	Largo          string `form:"largo" json:"largo"`
	Ancho          string `form:"ancho" json:"ancho"`
	Alto           string `form:"alto" json:"alto"`
	Peso           string `form:"peso" json:"peso"`
	MaxApilado     string `form:"max_apilado" json:"max_apilado"`
	SePalletiza    bool   `form:"se_palletiza" json:"se_palletiza"`
	UnidadesPallet string `form:"unidades_pallet" json:"unidades_pallet"`
}

// NaveOrDefault retorna la nave pedida o PL2 si vino vacía
func (r *CreateSKURequest) NaveOrDefault() Nave {
	if strings.TrimSpace(r.Nave) == "" {
		return NavePL2
	}
	return Nave(r.Nave)
}

// CreateSKUResponse representa la respuesta al registrar un SKU
type CreateSKUResponse struct {
	ID      string  `json:"id"`
	SKU     string  `json:"sku"`
	Nave    Nave    `json:"nave"`
	FotoURL *string `json:"foto_url"`
}

// HistorialResponse representa la ventana de últimos registros del
// dashboard. Los conteos por nave se calculan sobre la ventana
// traída, no sobre un agregado del servidor.
type HistorialResponse struct {
	Configurado   bool         `json:"configurado"`
	Items         []SKURecord  `json:"items"`
	ConteoPorNave map[Nave]int `json:"conteo_por_nave"`
	Mensaje       string       `json:"mensaje,omitempty"`
}

// ParseDecimal coerciona texto del formulario a decimal; vacío o no
// numérico vale 0
func ParseDecimal(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseEntero coerciona texto del formulario a entero; vacío o no
// numérico vale 0
func ParseEntero(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}
