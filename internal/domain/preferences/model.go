package preferences

import "time"

// Channel es un canal de entrega del catálogo.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelPush     Channel = "push"
	ChannelSMS      Channel = "sms"
	ChannelWhatsapp Channel = "whatsapp"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelPush, ChannelSMS, ChannelWhatsapp:
		return true
	}
	return false
}

// Tipos de notificación conocidos. El catálogo puede crecer por datos.
const (
	TipoConfirmacionCita = "confirmacion_cita"
	TipoRecordatorioCita = "recordatorio_cita"
	TipoCambioCita       = "cambio_cita"
)

// TypeEntry es una entrada del catálogo de tipos (tiponotificacion).
type TypeEntry struct {
	Nombre      string
	Descripcion string
	Activo      bool
}

// ChannelEntry es una entrada del catálogo de canales (canalnotificacion).
type ChannelEntry struct {
	Nombre      Channel
	Descripcion string
	Activo      bool
}

// Preference es la preferencia fina (usuario, tipo, canal) -> activo.
// Única por tupla; su ausencia implica el default opt-out (activo).
type Preference struct {
	ID       string
	PersonID string
	Tipo     string
	Canal    Channel
	Activo   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MobileDevice es un token push registrado. El token es único global:
// registrarlo para otra persona lo reasigna. A lo sumo un dispositivo
// activo por persona.
type MobileDevice struct {
	ID       string
	PersonID string

	Token      string
	Plataforma string // android | ios
	Modelo     string
	VersionApp string

	Activo          bool
	FechaRegistro   time.Time
	UltimaActividad time.Time
}
