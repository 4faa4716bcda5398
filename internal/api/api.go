package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/parasum-digital/sku-registro/internal/flow"
	"github.com/parasum-digital/sku-registro/internal/models"
	"github.com/parasum-digital/sku-registro/internal/scanner"
	"github.com/parasum-digital/sku-registro/internal/services"
	"github.com/sirupsen/logrus"
)

// API maneja todos los endpoints de la API
type API struct {
	registroService  *services.RegistroService
	historialService *services.HistorialService
	scanRegistry     *scanner.Registry
	flowStore        flow.Store
	logger           *logrus.Logger
}

// NewAPI crea una nueva instancia de la API
func NewAPI(
	registroService *services.RegistroService,
	historialService *services.HistorialService,
	scanRegistry *scanner.Registry,
	flowStore flow.Store,
	logger *logrus.Logger,
) *API {
	return &API{
		registroService:  registroService,
		historialService: historialService,
		scanRegistry:     scanRegistry,
		flowStore:        flowStore,
		logger:           logger,
	}
}

// CreateSKU registra un nuevo SKU desde el formulario móvil. Acepta
// multipart (campos + foto opcional en el campo "foto") o JSON sin foto.
func (api *API) CreateSKU(c *gin.Context) {
	var req models.CreateSKURequest
	if err := c.ShouldBind(&req); err != nil {
		api.logger.WithError(err).Error("Error binding create sku request")
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request format", []models.ErrorDetail{
			{Field: "body", Issue: err.Error()},
		}))
		return
	}

	// Foto opcional; solo presente en submits multipart
	var foto []byte
	if file, err := c.FormFile("foto"); err == nil {
		f, err := file.Open()
		if err != nil {
			api.logger.WithError(err).Warn("Error abriendo foto del formulario, se registra sin foto")
		} else {
			defer f.Close()
			if data, err := io.ReadAll(f); err == nil {
				foto = data
			} else {
				api.logger.WithError(err).Warn("Error leyendo foto del formulario, se registra sin foto")
			}
		}
	}

	record, err := api.registroService.Submit(c.Request.Context(), &req, foto)
	if err != nil {
		api.renderSubmitError(c, err)
		return
	}

	// El alta invalida la ventana cacheada del dashboard
	api.historialService.Invalidar()

	c.JSON(http.StatusCreated, models.CreateSKUResponse{
		ID:      record.ID.String(),
		SKU:     record.SKU,
		Nave:    record.Nave,
		FotoURL: record.FotoURL,
	})
}

// renderSubmitError mapea la taxonomía de errores del flujo de registro
// al envelope HTTP. Todos se manejan acá, inline; nada llega a un
// handler global.
func (api *API) renderSubmitError(c *gin.Context, err error) {
	var vErr *services.ValidationError
	var dErr *services.DuplicateError
	var pErr *services.PersistenceError

	switch {
	case errors.Is(err, services.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, models.NewNotConfiguredError(
			"Configura SUPABASE_URL y SUPABASE_ANON_KEY"))
	case errors.As(err, &vErr):
		details := make([]models.ErrorDetail, 0, len(vErr.Campos))
		for _, campo := range vErr.Campos {
			details = append(details, models.ErrorDetail{Field: campo, Issue: "obligatorio"})
		}
		c.JSON(http.StatusBadRequest, models.NewValidationError("Completa los campos obligatorios", details))
	case errors.As(err, &dErr):
		c.JSON(http.StatusConflict, models.NewConflictError(dErr.Error()))
	case errors.As(err, &pErr):
		api.logger.WithError(err).Error("Error persisting sku")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error al guardar: "+pErr.Err.Error()))
	default:
		api.logger.WithError(err).Error("Error creating sku")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error al guardar"))
	}
}

// GetRecent obtiene la ventana de últimos registros del dashboard.
// Nunca responde 5xx: backend ausente o vacío degradan al estado
// "sin datos".
func (api *API) GetRecent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	c.JSON(http.StatusOK, api.historialService.GetRecientes(limit))
}

// OpenScanSession abre una sesión de captura de código de barras
func (api *API) OpenScanSession(c *gin.Context) {
	sesion := api.scanRegistry.Abrir()
	c.JSON(http.StatusCreated, sesion)
}

// PushScanFrame recibe un frame de la cámara para decodificar. Si el
// frame trae un código legible, la sesión emite el valor una única vez
// y queda liberada; opcionalmente el código se vuelca al borrador de
// una sesión de registro (query param "registro").
func (api *API) PushScanFrame(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid session ID", []models.ErrorDetail{
			{Field: "id", Issue: "Must be a valid UUID"},
		}))
		return
	}

	file, err := c.FormFile("frame")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Frame required", []models.ErrorDetail{
			{Field: "frame", Issue: "Must be a multipart image field"},
		}))
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Frame unreadable", []models.ErrorDetail{
			{Field: "frame", Issue: err.Error()},
		}))
		return
	}
	defer f.Close()

	frame, err := imaging.Decode(f)
	if err != nil {
		// Error de captura: la sesión queda abierta, el cierre manual
		// sigue disponible
		c.JSON(http.StatusBadRequest, models.NewValidationError("Frame unreadable", []models.ErrorDetail{
			{Field: "frame", Issue: err.Error()},
		}))
		return
	}

	codigo, decodificado, err := api.scanRegistry.DecodeFrame(id, frame)
	if err != nil {
		switch {
		case errors.Is(err, scanner.ErrSesionNoEncontrada):
			c.JSON(http.StatusNotFound, models.NewNotFoundError("Scan session not found"))
		case errors.Is(err, scanner.ErrSesionCerrada):
			c.JSON(http.StatusConflict, models.NewConflictError("Scan session already closed"))
		default:
			api.logger.WithError(err).Error("Error decoding frame")
			c.JSON(http.StatusInternalServerError, models.NewInternalError("Error decoding frame"))
		}
		return
	}

	if decodificado {
		api.volcarCodigoADraft(c, codigo)
	}

	c.JSON(http.StatusOK, gin.H{
		"decodificado": decodificado,
		"codigo":       codigo,
	})
}

// CloseScanSession libera la sesión por pedido explícito del usuario;
// no emite ningún valor
func (api *API) CloseScanSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid session ID", []models.ErrorDetail{
			{Field: "id", Issue: "Must be a valid UUID"},
		}))
		return
	}

	if err := api.scanRegistry.Cerrar(id); err != nil {
		c.JSON(http.StatusNotFound, models.NewNotFoundError("Scan session not found"))
		return
	}

	c.Status(http.StatusNoContent)
}

// volcarCodigoADraft setea el sku escaneado en el borrador del
// formulario, si el cliente asoció una sesión de registro
func (api *API) volcarCodigoADraft(c *gin.Context, codigo string) {
	registroID := c.Query("registro")
	if registroID == "" {
		return
	}

	id, err := uuid.Parse(registroID)
	if err != nil {
		return
	}

	sesion, err := api.flowStore.Get(c.Request.Context(), id)
	if err != nil || sesion.Draft == nil {
		return
	}

	sesion.Draft.SKU = codigo
	sesion.Draft.EscaneoPendiente = false
	if err := api.flowStore.Guardar(c.Request.Context(), sesion); err != nil {
		api.logger.WithError(err).Warn("Error guardando sku escaneado en el borrador")
	}
}

// CreateRegistroSession abre una sesión de navegación en el estado
// inicial (dashboard)
func (api *API) CreateRegistroSession(c *gin.Context) {
	sesion, err := api.flowStore.Crear(c.Request.Context())
	if err != nil {
		api.logger.WithError(err).Error("Error creating registro session")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error creating session"))
		return
	}
	c.JSON(http.StatusCreated, sesion)
}

// GetRegistroSession obtiene una sesión de navegación
func (api *API) GetRegistroSession(c *gin.Context) {
	sesion, ok := api.loadRegistroSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sesion)
}

// transitionRequest representa el evento pedido por el cliente
type transitionRequest struct {
	Evento string `json:"evento" binding:"required"`
}

// TransitionRegistro aplica una transición tipada a la sesión de
// navegación. Un alta exitosa (save_success) fuerza el refresh del
// historial.
func (api *API) TransitionRegistro(c *gin.Context) {
	sesion, ok := api.loadRegistroSession(c)
	if !ok {
		return
	}

	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request format", []models.ErrorDetail{
			{Field: "evento", Issue: "required"},
		}))
		return
	}

	refresh, err := sesion.Transicionar(flow.Event(req.Evento))
	if err != nil {
		c.JSON(http.StatusConflict, models.NewConflictError(err.Error()))
		return
	}

	if err := api.flowStore.Guardar(c.Request.Context(), sesion); err != nil {
		api.logger.WithError(err).Error("Error saving registro session")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error saving session"))
		return
	}

	if refresh {
		api.historialService.Invalidar()
	}

	c.JSON(http.StatusOK, gin.H{
		"sesion":  sesion,
		"refresh": refresh,
	})
}

// PutDraft reemplaza el borrador del formulario de una sesión en estado form
func (api *API) PutDraft(c *gin.Context) {
	sesion, ok := api.loadRegistroSession(c)
	if !ok {
		return
	}

	if sesion.Estado != flow.StateForm {
		c.JSON(http.StatusConflict, models.NewConflictError("La sesión no está en el formulario"))
		return
	}

	var draft models.FormDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request format", []models.ErrorDetail{
			{Field: "body", Issue: err.Error()},
		}))
		return
	}

	sesion.Draft = &draft
	if err := api.flowStore.Guardar(c.Request.Context(), sesion); err != nil {
		api.logger.WithError(err).Error("Error saving registro draft")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error saving draft"))
		return
	}

	c.JSON(http.StatusOK, sesion)
}

// loadRegistroSession resuelve la sesión del path param; responde el
// error y retorna false si no se puede
func (api *API) loadRegistroSession(c *gin.Context) (*flow.Sesion, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid session ID", []models.ErrorDetail{
			{Field: "id", Issue: "Must be a valid UUID"},
		}))
		return nil, false
	}

	sesion, err := api.flowStore.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, models.NewNotFoundError("Registro session not found"))
		return nil, false
	}

	return sesion, true
}
