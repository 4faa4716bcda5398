package flow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCrearYGet(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	sesion, err := store.Crear(ctx)
	require.NoError(t, err)
	require.Equal(t, StateDashboard, sesion.Estado, "toda sesión arranca en el dashboard")
	require.Nil(t, sesion.Draft)

	leida, err := store.Get(ctx, sesion.ID)
	require.NoError(t, err)
	require.Equal(t, sesion.ID, leida.ID)
	require.Equal(t, StateDashboard, leida.Estado)
}

func TestMemoryStoreGetInexistente(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	_, err := store.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrSesionNoEncontrada)
}

func TestMemoryStoreGuardar(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	sesion, err := store.Crear(ctx)
	require.NoError(t, err)

	_, err = sesion.Transicionar(EventStartRegistration)
	require.NoError(t, err)
	sesion.Draft.SKU = "A100"
	require.NoError(t, store.Guardar(ctx, sesion))

	leida, err := store.Get(ctx, sesion.ID)
	require.NoError(t, err)
	require.Equal(t, StateForm, leida.Estado)
	require.Equal(t, "A100", leida.Draft.SKU)
}

func TestMemoryStoreGuardarInexistente(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	err := store.Guardar(context.Background(), &Sesion{ID: uuid.New(), Estado: StateDashboard})
	require.ErrorIs(t, err, ErrSesionNoEncontrada)
}

func TestMemoryStoreDevuelveCopias(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	sesion, err := store.Crear(ctx)
	require.NoError(t, err)

	// Mutar lo retornado no debe tocar lo guardado
	sesion.Estado = StateForm

	leida, err := store.Get(ctx, sesion.ID)
	require.NoError(t, err)
	require.Equal(t, StateDashboard, leida.Estado)
}

func TestMemoryStoreExpiraPorTTL(t *testing.T) {
	store := NewMemoryStore(time.Millisecond)
	ctx := context.Background()

	sesion, err := store.Crear(ctx)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = store.Get(ctx, sesion.ID)
	require.ErrorIs(t, err, ErrSesionNoEncontrada)
}
