package auth

// Claims representa la información extraída del token de sesión.
// IsStaff marca privilegio elevado de plataforma (staff), independiente
// del rol de negocio del Usuario.
type Claims struct {
	UserID  string
	Email   string
	IsStaff bool
}
