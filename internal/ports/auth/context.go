package auth

import "context"

type ctxKey string

const claimsKey ctxKey = "claims"

// WithClaims guarda los claims del principal en el contexto del request.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext recupera los claims que dejó el middleware de auth.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey).(Claims)
	return c, ok
}
