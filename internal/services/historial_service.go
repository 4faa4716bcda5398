package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/parasum-digital/sku-registro/internal/models"
	"github.com/sirupsen/logrus"
)

// MensajeSinDatos es el estado vacío/no-configurado del dashboard
const MensajeSinDatos = "Sin datos de Supabase — Configura las variables de entorno"

const historialLimitMax = 10

// RecentFetcher representa la lectura de la ventana de últimos registros
type RecentFetcher interface {
	GetRecent(limit int) ([]models.SKURecord, error)
}

// HistorialCache representa el cache opcional de la ventana del dashboard
type HistorialCache interface {
	Get(key string) (string, error)
	SetWithTTL(key string, value interface{}, ttl time.Duration) error
	Delete(key string) error
}

// HistorialService arma la vista de últimos registros del dashboard:
// una ventana acotada ordenada por fecha_registro descendente más los
// conteos por nave calculados sobre esa misma ventana (no un agregado
// del servidor; los conteos reflejan solo lo traído).
type HistorialService struct {
	fetcher      RecentFetcher
	cache        HistorialCache
	limitDefault int
	cacheTTL     time.Duration
	logger       *logrus.Logger
}

// NewHistorialService crea una nueva instancia del servicio. fetcher
// puede ser nil cuando Supabase no está configurado; cache puede ser nil
// cuando Redis no está disponible.
func NewHistorialService(fetcher RecentFetcher, cache HistorialCache, limitDefault int, cacheTTL time.Duration, logger *logrus.Logger) *HistorialService {
	if limitDefault <= 0 || limitDefault > historialLimitMax {
		limitDefault = 5
	}
	return &HistorialService{
		fetcher:      fetcher,
		cache:        cache,
		limitDefault: limitDefault,
		cacheTTL:     cacheTTL,
		logger:       logger,
	}
}

// GetRecientes obtiene la ventana de últimos registros. Nunca retorna
// error hacia la vista: backend ausente, caído o vacío degradan al
// estado "sin datos", jamás a un toast de error.
func (s *HistorialService) GetRecientes(limit int) *models.HistorialResponse {
	if limit <= 0 {
		limit = s.limitDefault
	}
	if limit > historialLimitMax {
		limit = historialLimitMax
	}

	if s.fetcher == nil {
		return &models.HistorialResponse{
			Configurado:   false,
			Items:         []models.SKURecord{},
			ConteoPorNave: map[models.Nave]int{},
			Mensaje:       MensajeSinDatos,
		}
	}

	if cached := s.fromCache(limit); cached != nil {
		return cached
	}

	records, err := s.fetcher.GetRecent(limit)
	if err != nil {
		s.logger.WithError(err).Warn("Error leyendo últimos registros, se muestra estado vacío")
		records = nil
	}

	response := s.build(records)
	if err == nil {
		s.toCache(limit, response)
	}

	return response
}

// Invalidar descarta la ventana cacheada; se llama tras un alta exitosa
// para forzar el refresh del dashboard
func (s *HistorialService) Invalidar() {
	if s.cache == nil {
		return
	}
	for limit := 1; limit <= historialLimitMax; limit++ {
		if err := s.cache.Delete(s.cacheKey(limit)); err != nil {
			s.logger.WithError(err).Debug("Error invalidando cache de historial")
		}
	}
}

func (s *HistorialService) build(records []models.SKURecord) *models.HistorialResponse {
	response := &models.HistorialResponse{
		Configurado:   true,
		Items:         records,
		ConteoPorNave: map[models.Nave]int{},
	}
	if len(records) == 0 {
		response.Items = []models.SKURecord{}
		response.Mensaje = MensajeSinDatos
		return response
	}

	// Conteo por nave sobre la ventana traída
	for _, record := range records {
		response.ConteoPorNave[record.Nave]++
	}

	return response
}

func (s *HistorialService) cacheKey(limit int) string {
	return fmt.Sprintf("historial:recientes:%d", limit)
}

func (s *HistorialService) fromCache(limit int) *models.HistorialResponse {
	if s.cache == nil {
		return nil
	}

	raw, err := s.cache.Get(s.cacheKey(limit))
	if err != nil {
		// Miss o Redis caído: se va a la base igual
		return nil
	}

	var response models.HistorialResponse
	if err := json.Unmarshal([]byte(raw), &response); err != nil {
		s.logger.WithError(err).Debug("Cache de historial corrupto, se descarta")
		return nil
	}

	return &response
}

func (s *HistorialService) toCache(limit int, response *models.HistorialResponse) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(response)
	if err != nil {
		return
	}

	if err := s.cache.SetWithTTL(s.cacheKey(limit), string(raw), s.cacheTTL); err != nil {
		s.logger.WithError(err).Debug("Error cacheando historial")
	}
}
