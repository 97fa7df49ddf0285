package channel

import "context"

// Sender es el transporte abstracto de un canal (email, push, sms).
// El dispatcher trata cualquier error como fallo de entrega; nunca
// inspecciona la respuesta del proveedor más allá de éxito/fallo.
type Sender interface {
	Send(ctx context.Context, addresses []string, title, body string, metadata map[string]any) error
}
