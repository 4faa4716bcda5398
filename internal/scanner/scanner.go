// Package scanner implementa las sesiones de captura de código de
// barras. Una sesión recibe frames de la cámara del dispositivo hasta
// el primer decode exitoso: el valor se entrega exactamente una vez y
// la sesión queda liberada; frames posteriores no se entregan. El
// cierre explícito y la expiración por TTL también liberan la sesión,
// de modo que el recurso se suelta en todos los caminos de salida.
package scanner

import (
	"errors"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSesionNoEncontrada indica que la sesión no existe o ya fue liberada
	ErrSesionNoEncontrada = errors.New("sesión de escaneo no encontrada")
	// ErrSesionCerrada indica un frame llegado después del primer decode
	// exitoso o del cierre explícito
	ErrSesionCerrada = errors.New("sesión de escaneo cerrada")
)

// Sesion representa una captura de código de barras en curso
type Sesion struct {
	ID     uuid.UUID `json:"id"`
	Creada time.Time `json:"creada"`

	mu           sync.Mutex
	decodificado bool
	cerrada      bool
}

// Registry administra las sesiones de escaneo activas. Los frames
// pueden llegar concurrentes desde el mismo dispositivo.
type Registry struct {
	mu       sync.Mutex
	sesiones map[uuid.UUID]*Sesion
	ttl      time.Duration
	logger   *logrus.Logger
}

// NewRegistry crea un nuevo registro de sesiones
func NewRegistry(ttl time.Duration, logger *logrus.Logger) *Registry {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Registry{
		sesiones: make(map[uuid.UUID]*Sesion),
		ttl:      ttl,
		logger:   logger,
	}
}

// Abrir crea una nueva sesión de captura
func (r *Registry) Abrir() *Sesion {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.barrerVencidas()

	sesion := &Sesion{
		ID:     uuid.New(),
		Creada: time.Now(),
	}
	r.sesiones[sesion.ID] = sesion

	r.logger.WithField("sesion", sesion.ID).Debug("Sesión de escaneo abierta")
	return sesion
}

// Cerrar libera una sesión por pedido explícito del usuario; no emite
// ningún valor
func (r *Registry) Cerrar(id uuid.UUID) error {
	r.mu.Lock()
	sesion, ok := r.sesiones[id]
	if ok {
		delete(r.sesiones, id)
	}
	r.mu.Unlock()

	if !ok {
		return ErrSesionNoEncontrada
	}

	sesion.mu.Lock()
	sesion.cerrada = true
	sesion.mu.Unlock()

	r.logger.WithField("sesion", id).Debug("Sesión de escaneo cerrada por el usuario")
	return nil
}

// Activas retorna la cantidad de sesiones vivas
func (r *Registry) Activas() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.barrerVencidas()
	return len(r.sesiones)
}

// DecodeFrame intenta decodificar un frame de la cámara dentro de una
// sesión. Un frame sin código legible no es un error: el loop de
// captura continúa. El primer decode exitoso detiene la sesión antes
// de entregar el valor, así que intentos posteriores no se entregan.
func (r *Registry) DecodeFrame(id uuid.UUID, frame image.Image) (string, bool, error) {
	r.mu.Lock()
	r.barrerVencidas()
	sesion, ok := r.sesiones[id]
	r.mu.Unlock()

	if !ok {
		return "", false, ErrSesionNoEncontrada
	}

	sesion.mu.Lock()
	defer sesion.mu.Unlock()

	if sesion.cerrada || sesion.decodificado {
		return "", false, ErrSesionCerrada
	}

	texto, err := decodificar(frame)
	if err != nil {
		// Frame sin código: el loop sigue, la sesión queda abierta
		return "", false, nil
	}

	// Detener antes de emitir
	sesion.decodificado = true

	r.mu.Lock()
	delete(r.sesiones, id)
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"sesion": id,
		"codigo": texto,
	}).Info("Código de barras decodificado")

	return texto, true, nil
}

// barrerVencidas libera sesiones abandonadas; debe llamarse con r.mu
// tomado
func (r *Registry) barrerVencidas() {
	limite := time.Now().Add(-r.ttl)
	for id, sesion := range r.sesiones {
		if sesion.Creada.Before(limite) {
			delete(r.sesiones, id)
			r.logger.WithField("sesion", id).Debug("Sesión de escaneo vencida, liberada")
		}
	}
}

// errCodigoIlegible indica un frame donde ningún formato decodificó
var errCodigoIlegible = errors.New("frame sin código 1D legible")

// decodificar delega en gozxing la lectura de códigos 1D, probando
// cada formato soportado hasta el primer acierto
func decodificar(frame image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
	if err != nil {
		return "", err
	}

	readers := []gozxing.Reader{
		oned.NewCode128Reader(),
		oned.NewEAN13Reader(),
		oned.NewEAN8Reader(),
		oned.NewCode39Reader(),
		oned.NewITFReader(),
	}

	for _, reader := range readers {
		result, err := reader.Decode(bmp, nil)
		if err != nil {
			continue
		}
		return result.GetText(), nil
	}

	return "", errCodigoIlegible
}
