package services

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// FotoService convierte la imagen elegida por el usuario en un JPEG
// acotado apto para subir al bucket
type FotoService struct {
	maxLado int
	calidad int
	logger  *logrus.Logger
}

// NewFotoService crea una nueva instancia del servicio
func NewFotoService(maxLado, calidad int, logger *logrus.Logger) *FotoService {
	if maxLado <= 0 {
		maxLado = 800
	}
	if calidad <= 0 || calidad > 100 {
		calidad = 70
	}
	return &FotoService{
		maxLado: maxLado,
		calidad: calidad,
		logger:  logger,
	}
}

// Procesar decodifica la imagen de origen en cualquier formato soportado,
// la reduce para que el lado mayor no supere maxLado conservando la
// relación de aspecto (nunca agranda) y la re-encodea como JPEG con
// calidad fija, independiente del formato de entrada.
func (s *FotoService) Procesar(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("error decoding foto: %w", err)
	}

	resized := s.Reducir(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(s.calidad)); err != nil {
		return nil, fmt.Errorf("error encoding foto: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"original":  img.Bounds().Size(),
		"procesado": resized.Bounds().Size(),
		"bytes":     buf.Len(),
	}).Debug("Foto procesada")

	return buf.Bytes(), nil
}

// Reducir aplica solo el downscale, sin re-encodear. Si ambos lados ya
// están dentro del límite la imagen se retorna sin cambios.
func (s *FotoService) Reducir(img image.Image) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= s.maxLado && bounds.Dy() <= s.maxLado {
		return img
	}
	return imaging.Fit(img, s.maxLado, s.maxLado, imaging.Lanczos)
}
