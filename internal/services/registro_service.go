package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parasum-digital/sku-registro/internal/models"
	"github.com/sirupsen/logrus"
)

// SKUStore representa las operaciones sobre maestro_sku que necesita el
// flujo de registro
type SKUStore interface {
	ExistsBySKUAndNave(sku string, nave models.Nave) (bool, error)
	Insert(record *models.SKURecord) error
}

// FotoUploader representa la subida de fotos al bucket sku-fotos
type FotoUploader interface {
	UploadFoto(ctx context.Context, fileName string, fileData []byte) (string, error)
	DeleteFoto(ctx context.Context, fileName string) error
}

// RegistroService orquesta el alta de un SKU: validación, chequeo de
// duplicado, subida opcional de foto e insert. Por cada submit hace
// exactamente una lectura de duplicado, a lo sumo una subida de foto y
// exactamente un intento de insert; nunca reintenta solo.
type RegistroService struct {
	store    SKUStore
	uploader FotoUploader
	fotos    *FotoService
	logger   *logrus.Logger
}

// NewRegistroService crea una nueva instancia del servicio. store y
// uploader pueden ser nil cuando Supabase no está configurado; el
// servicio responde ErrNotConfigured en ese caso.
func NewRegistroService(store SKUStore, uploader FotoUploader, fotos *FotoService, logger *logrus.Logger) *RegistroService {
	return &RegistroService{
		store:    store,
		uploader: uploader,
		fotos:    fotos,
		logger:   logger,
	}
}

// Configured indica si el servicio puede escribir en el backend
func (s *RegistroService) Configured() bool {
	return s.store != nil
}

// Submit ejecuta el flujo completo de alta de un SKU. foto puede ser nil;
// si viene, se procesa y se sube antes del insert, y un fallo de subida
// degrada a foto_url null sin abortar el alta.
func (s *RegistroService) Submit(ctx context.Context, req *models.CreateSKURequest, foto []byte) (*models.SKURecord, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	// Validaciones básicas: los tres campos obligatorios del formulario
	if err := s.validate(req); err != nil {
		return nil, err
	}

	nave := req.NaveOrDefault()

	// Verificar duplicado (SKU + Nave). Una sola lectura; si existe se
	// aborta antes de cualquier escritura.
	exists, err := s.store.ExistsBySKUAndNave(req.SKU, nave)
	if err != nil {
		return nil, &PersistenceError{Op: "duplicado", Err: err}
	}
	if exists {
		return nil, &DuplicateError{SKU: req.SKU, Nave: nave}
	}

	// Subida opcional de foto. El nombre deriva del sku y la hora actual
	// para que reintentos del mismo sku no colisionen en el bucket.
	fotoURL, fotoName := s.subirFoto(ctx, req.SKU, foto)

	record := s.buildRecord(req, nave, fotoURL)

	if err := s.store.Insert(record); err != nil {
		// El insert falló: la foto ya subida quedaría huérfana en el bucket
		s.borrarFoto(ctx, fotoName)
		return nil, &PersistenceError{Op: "insert", Err: err}
	}

	s.logger.WithFields(logrus.Fields{
		"id":       record.ID,
		"sku":      record.SKU,
		"nave":     record.Nave,
		"con_foto": record.FotoURL != nil,
	}).Info("SKU registrado")

	return record, nil
}

// validate aplica la política del formulario: sku, descripcion y
// max_apilado son obligatorios; los rangos numéricos no se validan más
// allá de la coerción.
func (s *RegistroService) validate(req *models.CreateSKURequest) error {
	var campos []string
	if strings.TrimSpace(req.SKU) == "" {
		campos = append(campos, "sku")
	}
	if strings.TrimSpace(req.Descripcion) == "" {
		campos = append(campos, "descripcion")
	}
	if strings.TrimSpace(req.MaxApilado) == "" {
		campos = append(campos, "max_apilado")
	}
	if strings.TrimSpace(req.Nave) != "" && !models.Nave(req.Nave).Valid() {
		campos = append(campos, "nave")
	}
	if len(campos) > 0 {
		return &ValidationError{Campos: campos}
	}
	return nil
}

// subirFoto procesa y sube la foto. Cualquier fallo acá es no fatal:
// se loguea y el registro sigue sin foto. Retorna también el nombre
// del objeto subido para poder limpiarlo si el insert posterior falla.
func (s *RegistroService) subirFoto(ctx context.Context, sku string, foto []byte) (*string, string) {
	if len(foto) == 0 {
		return nil, ""
	}
	if s.uploader == nil {
		s.logger.Warn("Foto recibida pero el storage no está configurado, se registra sin foto")
		return nil, ""
	}

	procesada, err := s.fotos.Procesar(foto)
	if err != nil {
		s.logger.WithError(err).Warn("Error procesando foto, se registra sin foto")
		return nil, ""
	}

	fileName := fmt.Sprintf("%s_%d.jpg", sku, time.Now().Unix())
	url, err := s.uploader.UploadFoto(ctx, fileName, procesada)
	if err != nil {
		s.logger.WithError(err).Warn("Error subiendo foto, se registra sin foto")
		return nil, ""
	}

	return &url, fileName
}

// borrarFoto limpia del bucket una foto cuyo registro no llegó a
// insertarse
func (s *RegistroService) borrarFoto(ctx context.Context, fileName string) {
	if fileName == "" || s.uploader == nil {
		return
	}
	if err := s.uploader.DeleteFoto(ctx, fileName); err != nil {
		s.logger.WithError(err).WithField("foto", fileName).Warn("Error limpiando foto huérfana del bucket")
	}
}

// buildRecord arma el registro final con la coerción numérica del
// formulario: vacío o no numérico vale 0
func (s *RegistroService) buildRecord(req *models.CreateSKURequest, nave models.Nave, fotoURL *string) *models.SKURecord {
	var unidades *int
	if req.SePalletiza {
		v := models.ParseEntero(req.UnidadesPallet)
		unidades = &v
	}

	return &models.SKURecord{
		ID:                uuid.New(),
		SKU:               req.SKU,
		Descripcion:       req.Descripcion,
		Nave:              nave,
		LargoCm:           models.ParseDecimal(req.Largo),
		AnchoCm:           models.ParseDecimal(req.Ancho),
		AltoCm:            models.ParseDecimal(req.Alto),
		PesoKg:            models.ParseDecimal(req.Peso),
		MaxApilado:        models.ParseEntero(req.MaxApilado),
		SePalletiza:       req.SePalletiza,
		UnidadesPorPallet: unidades,
		FotoURL:           fotoURL,
		FechaRegistro:     time.Now().UTC(),
	}
}
