package appointments

// Status es el estado de una consulta.
// agendada -> en_hora -> demorada es transición del barrido por tiempo;
// reprogramada y cancelada son manuales. cancelada es terminal.
type Status string

const (
	StatusAgendada     Status = "agendada"
	StatusEnHora       Status = "en_hora"
	StatusDemorada     Status = "demorada"
	StatusReprogramada Status = "reprogramada"
	StatusCancelada    Status = "cancelada"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAgendada, StatusEnHora, StatusDemorada, StatusReprogramada, StatusCancelada:
		return true
	}
	return false
}

// Terminal: sobre una consulta cancelada no hay más transiciones.
func (s Status) Terminal() bool {
	return s == StatusCancelada
}

// Sweepable: estados que el barrido puede pasar a demorada.
func (s Status) Sweepable() bool {
	return s == StatusAgendada || s == StatusEnHora
}
