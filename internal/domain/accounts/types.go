package accounts

// Role es el catálogo de roles del sistema. El valor "administrador" es
// reservado: los chequeos de autorización dependen de él.
type Role string

const (
	RoleAdministrador Role = "administrador"
	RolePaciente      Role = "paciente"
	RoleOdontologo    Role = "odontologo"
	RoleRecepcionista Role = "recepcionista"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdministrador, RolePaciente, RoleOdontologo, RoleRecepcionista:
		return true
	}
	return false
}

// HasProfile indica si el rol lleva un perfil subtipo 1-1.
// Administrador no tiene tabla propia.
func (r Role) HasProfile() bool {
	return r == RolePaciente || r == RoleOdontologo || r == RoleRecepcionista
}

// ProfileKind etiqueta la variante del perfil subtipo.
type ProfileKind string

const (
	ProfileNone          ProfileKind = "ninguno"
	ProfilePaciente      ProfileKind = "paciente"
	ProfileOdontologo    ProfileKind = "odontologo"
	ProfileRecepcionista ProfileKind = "recepcionista"
)

// KindForRole deriva la variante de perfil desde el rol. El rol es la única
// fuente de verdad: nunca se infiere el subtipo por presencia de filas.
func KindForRole(r Role) ProfileKind {
	switch r {
	case RolePaciente:
		return ProfilePaciente
	case RoleOdontologo:
		return ProfileOdontologo
	case RoleRecepcionista:
		return ProfileRecepcionista
	default:
		return ProfileNone
	}
}
