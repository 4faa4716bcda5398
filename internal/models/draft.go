package models

// FormDraft representa el borrador efímero de un alta de SKU.
// Existe solo mientras dura una sesión de formulario y se descarta al
// cancelar o al guardar con éxito; nunca se persiste en maestro_sku.
type FormDraft struct {
	CreateSKURequest
	EscaneoPendiente bool `json:"escaneo_pendiente"`
}
