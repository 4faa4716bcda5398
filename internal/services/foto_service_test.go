package services

import (
	"bytes"
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProcesarReduceLadoMayor(t *testing.T) {
	s := NewFotoService(800, 70, testLogger())

	out, err := s.Procesar(pngBytes(t, 2000, 1000))
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	require.Equal(t, 800, cfg.Width)
	require.Equal(t, 400, cfg.Height, "la relación de aspecto se conserva")
}

func TestProcesarVerticalReduceAlto(t *testing.T) {
	s := NewFotoService(800, 70, testLogger())

	out, err := s.Procesar(pngBytes(t, 600, 1600))
	require.NoError(t, err)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, 300, cfg.Width)
	require.Equal(t, 800, cfg.Height)
}

func TestProcesarNoAgranda(t *testing.T) {
	s := NewFotoService(800, 70, testLogger())

	out, err := s.Procesar(pngBytes(t, 400, 300))
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format, "se re-encodea aunque no haga falta reducir")
	require.Equal(t, 400, cfg.Width)
	require.Equal(t, 300, cfg.Height)
}

func TestProcesarEntradaIlegible(t *testing.T) {
	s := NewFotoService(800, 70, testLogger())

	_, err := s.Procesar([]byte("no es una imagen"))
	require.Error(t, err)
}

func TestReducirDevuelveMismaImagenSiYaEntra(t *testing.T) {
	s := NewFotoService(800, 70, testLogger())

	img := image.NewRGBA(image.Rect(0, 0, 800, 800))
	require.Equal(t, image.Image(img), s.Reducir(img), "dentro del límite no se toca")
}

func TestNewFotoServiceDefaults(t *testing.T) {
	s := NewFotoService(0, 0, testLogger())
	require.Equal(t, 800, s.maxLado)
	require.Equal(t, 70, s.calidad)

	s = NewFotoService(-1, 150, testLogger())
	require.Equal(t, 800, s.maxLado)
	require.Equal(t, 70, s.calidad)
}
