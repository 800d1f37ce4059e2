package conversation

import "bookline/models"

// Effect is a side effect requested by a step handler. Handlers stay pure
// with respect to writes; the engine executes effects after the transition.
type Effect interface{ isEffect() }

type sendEffect struct {
	Payload models.OutboundPayload
}

type bookEffect struct {
	Date string
	Slot string
}

type cancelApptEffect struct {
	AppointmentID string
}

type startHandoffEffect struct {
	FirstMessage string
}

type planCheckoutEffect struct {
	PlanID string
}

type clearSessionEffect struct{}

func (sendEffect) isEffect()         {}
func (bookEffect) isEffect()         {}
func (cancelApptEffect) isEffect()   {}
func (startHandoffEffect) isEffect() {}
func (planCheckoutEffect) isEffect() {}
func (clearSessionEffect) isEffect() {}

func send(p models.OutboundPayload) Effect { return sendEffect{Payload: p} }

func sendText(text string) Effect {
	return sendEffect{Payload: models.TextPayload(text)}
}
