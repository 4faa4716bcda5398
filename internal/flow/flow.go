// Package flow modela la navegación del front de registro como una
// máquina de estados explícita: dos vistas, transiciones tipadas que
// retornan el próximo estado y estados enumerables para testeo, en
// lugar de un flag de vista implícito.
package flow

import (
	"errors"
	"fmt"
)

// State representa la vista activa
type State string

const (
	StateDashboard State = "dashboard"
	StateForm      State = "form"
)

// States enumera todos los estados alcanzables
func States() []State {
	return []State{StateDashboard, StateForm}
}

// Event representa una transición pedida por el usuario
type Event string

const (
	EventStartRegistration Event = "start_registration"
	EventCancel            Event = "cancel"
	EventSaveSuccess       Event = "save_success"
)

// ErrTransicionInvalida indica un evento no aplicable al estado actual
var ErrTransicionInvalida = errors.New("transición inválida")

// StartRegistration pasa del dashboard al formulario
func StartRegistration(s State) (State, error) {
	if s != StateDashboard {
		return s, fmt.Errorf("%w: %s desde %s", ErrTransicionInvalida, EventStartRegistration, s)
	}
	return StateForm, nil
}

// Cancel descarta el formulario y vuelve al dashboard
func Cancel(s State) (State, error) {
	if s != StateForm {
		return s, fmt.Errorf("%w: %s desde %s", ErrTransicionInvalida, EventCancel, s)
	}
	return StateDashboard, nil
}

// SaveSuccess vuelve al dashboard tras un alta exitosa; el segundo
// retorno indica que el historial debe refrescarse forzosamente
func SaveSuccess(s State) (State, bool, error) {
	if s != StateForm {
		return s, false, fmt.Errorf("%w: %s desde %s", ErrTransicionInvalida, EventSaveSuccess, s)
	}
	return StateDashboard, true, nil
}
