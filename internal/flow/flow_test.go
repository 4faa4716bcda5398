package flow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStates(t *testing.T) {
	require.Equal(t, []State{StateDashboard, StateForm}, States())
}

func TestStartRegistration(t *testing.T) {
	next, err := StartRegistration(StateDashboard)
	require.NoError(t, err)
	require.Equal(t, StateForm, next)

	next, err = StartRegistration(StateForm)
	require.ErrorIs(t, err, ErrTransicionInvalida)
	require.Equal(t, StateForm, next, "una transición inválida no mueve el estado")
}

func TestCancel(t *testing.T) {
	next, err := Cancel(StateForm)
	require.NoError(t, err)
	require.Equal(t, StateDashboard, next)

	_, err = Cancel(StateDashboard)
	require.ErrorIs(t, err, ErrTransicionInvalida)
}

func TestSaveSuccess(t *testing.T) {
	next, refresh, err := SaveSuccess(StateForm)
	require.NoError(t, err)
	require.Equal(t, StateDashboard, next)
	require.True(t, refresh, "guardar con éxito fuerza el refresh del historial")

	_, refresh, err = SaveSuccess(StateDashboard)
	require.ErrorIs(t, err, ErrTransicionInvalida)
	require.False(t, refresh)
}

// Tabla completa: cada evento contra cada estado
func TestTransicionesExhaustivas(t *testing.T) {
	valid := map[State]map[Event]State{
		StateDashboard: {EventStartRegistration: StateForm},
		StateForm:      {EventCancel: StateDashboard, EventSaveSuccess: StateDashboard},
	}

	for _, estado := range States() {
		for _, evento := range []Event{EventStartRegistration, EventCancel, EventSaveSuccess} {
			sesion := &Sesion{Estado: estado}
			_, err := sesion.Transicionar(evento)

			esperado, ok := valid[estado][evento]
			if !ok {
				require.ErrorIs(t, err, ErrTransicionInvalida, "%s desde %s", evento, estado)
				require.Equal(t, estado, sesion.Estado)
				continue
			}
			require.NoError(t, err, "%s desde %s", evento, estado)
			require.Equal(t, esperado, sesion.Estado)
		}
	}
}

func TestTransicionarEventoDesconocido(t *testing.T) {
	sesion := &Sesion{Estado: StateDashboard}
	_, err := sesion.Transicionar(Event("reload"))
	require.ErrorIs(t, err, ErrTransicionInvalida)
}

func TestCicloDeVidaDelBorrador(t *testing.T) {
	sesion := &Sesion{Estado: StateDashboard}

	_, err := sesion.Transicionar(EventStartRegistration)
	require.NoError(t, err)
	require.NotNil(t, sesion.Draft, "entrar al formulario crea un borrador vacío")

	sesion.Draft.SKU = "A100"

	refresh, err := sesion.Transicionar(EventCancel)
	require.NoError(t, err)
	require.False(t, refresh)
	require.Nil(t, sesion.Draft, "cancelar descarta el borrador")

	// Volver a entrar arranca de cero
	_, err = sesion.Transicionar(EventStartRegistration)
	require.NoError(t, err)
	require.Empty(t, sesion.Draft.SKU)

	refresh, err = sesion.Transicionar(EventSaveSuccess)
	require.NoError(t, err)
	require.True(t, refresh)
	require.Nil(t, sesion.Draft, "guardar también descarta el borrador")
}
