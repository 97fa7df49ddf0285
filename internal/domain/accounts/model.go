package accounts

import "time"

// Person representa el actor humano del dominio (tabla usuario),
// separado de la credencial de autenticación.
type Person struct {
	ID string

	Nombre   string
	Apellido string
	Email    string // único, comparación case-insensitive
	Telefono string
	Sexo     string

	Role Role

	// Toggles gruesos de notificación.
	RecibirNotificaciones bool
	RecibirEmail          bool
	RecibirPush           bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PatientProfile es el subtipo 1-1 de un paciente.
type PatientProfile struct {
	PersonID        string
	CarnetIdentidad string // único
	FechaNacimiento *time.Time
	Direccion       string
}

// DentistProfile es el subtipo 1-1 de un odontólogo.
type DentistProfile struct {
	PersonID               string
	Especialidad           string
	ExperienciaProfesional string
	NroMatricula           string // único
}

// ReceptionistProfile es el subtipo 1-1 de un recepcionista.
type ReceptionistProfile struct {
	PersonID            string
	HabilidadesSoftware string
}

// Profile es la unión etiquetada del subtipo. A lo sumo una variante
// poblada, y siempre consistente con el Role de la Person.
type Profile struct {
	Kind ProfileKind

	Paciente      *PatientProfile
	Odontologo    *DentistProfile
	Recepcionista *ReceptionistProfile
}

// NotificationSettings agrupa los toggles que el propio usuario puede editar.
type NotificationSettings struct {
	RecibirNotificaciones bool
	RecibirEmail          bool
	RecibirPush           bool
}
