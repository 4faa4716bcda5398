package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parasum-digital/sku-registro/internal/database"
	"github.com/parasum-digital/sku-registro/internal/models"
)

// ErrSesionNoEncontrada indica que la sesión de registro no existe o expiró
var ErrSesionNoEncontrada = errors.New("sesión de registro no encontrada")

// Sesion representa el estado de navegación de un dispositivo más su
// borrador de formulario. El borrador existe solo mientras la vista es
// el formulario y se descarta al cancelar o al guardar con éxito.
type Sesion struct {
	ID          uuid.UUID         `json:"id"`
	Estado      State             `json:"estado"`
	Draft       *models.FormDraft `json:"draft,omitempty"`
	Actualizada time.Time         `json:"actualizada"`
}

// Transicionar aplica un evento a la sesión y maneja el ciclo de vida
// del borrador. Retorna si el historial debe refrescarse.
func (s *Sesion) Transicionar(e Event) (bool, error) {
	switch e {
	case EventStartRegistration:
		next, err := StartRegistration(s.Estado)
		if err != nil {
			return false, err
		}
		s.Estado = next
		s.Draft = &models.FormDraft{}
	case EventCancel:
		next, err := Cancel(s.Estado)
		if err != nil {
			return false, err
		}
		s.Estado = next
		s.Draft = nil
	case EventSaveSuccess:
		next, refresh, err := SaveSuccess(s.Estado)
		if err != nil {
			return false, err
		}
		s.Estado = next
		s.Draft = nil
		s.Actualizada = time.Now()
		return refresh, nil
	default:
		return false, fmt.Errorf("%w: evento desconocido %q", ErrTransicionInvalida, e)
	}

	s.Actualizada = time.Now()
	return false, nil
}

// Store representa la persistencia de sesiones de registro
type Store interface {
	Crear(ctx context.Context) (*Sesion, error)
	Get(ctx context.Context, id uuid.UUID) (*Sesion, error)
	Guardar(ctx context.Context, sesion *Sesion) error
}

// ─── Store en memoria ───

// MemoryStore guarda las sesiones en memoria; es el fallback cuando
// Redis no está disponible. Las sesiones expiran por TTL.
type MemoryStore struct {
	mu       sync.Mutex
	sesiones map[uuid.UUID]*Sesion
	ttl      time.Duration
}

// NewMemoryStore crea un store en memoria
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MemoryStore{
		sesiones: make(map[uuid.UUID]*Sesion),
		ttl:      ttl,
	}
}

// Crear abre una nueva sesión en el estado inicial
func (m *MemoryStore) Crear(ctx context.Context) (*Sesion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.barrer()

	sesion := &Sesion{
		ID:          uuid.New(),
		Estado:      StateDashboard,
		Actualizada: time.Now(),
	}
	m.sesiones[sesion.ID] = sesion
	return clonar(sesion), nil
}

// Get obtiene una sesión por ID
func (m *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Sesion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.barrer()

	sesion, ok := m.sesiones[id]
	if !ok {
		return nil, ErrSesionNoEncontrada
	}
	return clonar(sesion), nil
}

// Guardar persiste el estado actualizado de una sesión
func (m *MemoryStore) Guardar(ctx context.Context, sesion *Sesion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sesiones[sesion.ID]; !ok {
		return ErrSesionNoEncontrada
	}
	m.sesiones[sesion.ID] = clonar(sesion)
	return nil
}

// barrer descarta sesiones vencidas; debe llamarse con m.mu tomado
func (m *MemoryStore) barrer() {
	limite := time.Now().Add(-m.ttl)
	for id, sesion := range m.sesiones {
		if sesion.Actualizada.Before(limite) {
			delete(m.sesiones, id)
		}
	}
}

func clonar(s *Sesion) *Sesion {
	copia := *s
	if s.Draft != nil {
		draft := *s.Draft
		copia.Draft = &draft
	}
	return &copia
}

// ─── Store sobre Redis ───

// RedisStore guarda las sesiones en Redis con TTL, para que el estado
// de navegación sobreviva reinicios del servicio
type RedisStore struct {
	redis *database.Redis
	ttl   time.Duration
}

// NewRedisStore crea un store sobre Redis
func NewRedisStore(redis *database.Redis, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisStore{
		redis: redis,
		ttl:   ttl,
	}
}

// Crear abre una nueva sesión en el estado inicial
func (r *RedisStore) Crear(ctx context.Context) (*Sesion, error) {
	sesion := &Sesion{
		ID:          uuid.New(),
		Estado:      StateDashboard,
		Actualizada: time.Now(),
	}
	if err := r.Guardar(ctx, sesion); err != nil {
		return nil, err
	}
	return sesion, nil
}

// Get obtiene una sesión por ID
func (r *RedisStore) Get(ctx context.Context, id uuid.UUID) (*Sesion, error) {
	raw, err := r.redis.Get(r.key(id))
	if err != nil {
		return nil, ErrSesionNoEncontrada
	}

	var sesion Sesion
	if err := json.Unmarshal([]byte(raw), &sesion); err != nil {
		return nil, fmt.Errorf("error decoding sesión de registro: %w", err)
	}
	return &sesion, nil
}

// Guardar persiste el estado actualizado de una sesión
func (r *RedisStore) Guardar(ctx context.Context, sesion *Sesion) error {
	raw, err := json.Marshal(sesion)
	if err != nil {
		return fmt.Errorf("error encoding sesión de registro: %w", err)
	}
	return r.redis.SetWithTTL(r.key(sesion.ID), string(raw), r.ttl)
}

func (r *RedisStore) key(id uuid.UUID) string {
	return fmt.Sprintf("registro:sesion:%s", id)
}
