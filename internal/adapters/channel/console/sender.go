// Package console implementa un Sender de desarrollo que imprime las
// notificaciones en el log en vez de enviarlas de verdad.
package console

import (
	"context"

	"dental-clinic-backend/internal/platform/logger"
)

type Sender struct {
	canal string
	log   logger.Logger
}

func New(canal string, log logger.Logger) *Sender {
	if log == nil {
		log = logger.Nop()
	}
	return &Sender{canal: canal, log: log}
}

func (s *Sender) Send(ctx context.Context, addresses []string, title, body string, metadata map[string]any) error {
	s.log.Info("notificación despachada (consola)", map[string]any{
		"canal":         s.canal,
		"destinatarios": addresses,
		"titulo":        title,
		"mensaje":       body,
		"metadata":      metadata,
	})
	return nil
}
