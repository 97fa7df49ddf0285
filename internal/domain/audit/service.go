package audit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"dental-clinic-backend/internal/platform/logger"
)

type Service struct {
	repo Repository
	log  logger.Logger
	now  func() time.Time
}

func NewService(repo Repository, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

type RecordInput struct {
	Accion      string
	Descripcion string
	ActorID     string // vacío => actor desconocido/pre-auth
	IPAddress   string
	UserAgent   string
	Entidad     string
	EntidadID   string
	Datos       map[string]any
}

// Record agrega una entrada a la bitácora. No devuelve error: un fallo de
// auditoría jamás puede romper la operación primaria, así que se absorbe
// acá y solo se loguea.
func (s *Service) Record(ctx context.Context, in RecordInput) {
	if strings.TrimSpace(in.Accion) == "" {
		return
	}

	var actor *string
	if a := strings.TrimSpace(in.ActorID); a != "" {
		actor = &a
	}

	e := Entry{
		ID:          uuid.NewString(),
		Accion:      strings.TrimSpace(in.Accion),
		Descripcion: strings.TrimSpace(in.Descripcion),
		ActorID:     actor,
		IPAddress:   strings.TrimSpace(in.IPAddress),
		UserAgent:   in.UserAgent,
		Entidad:     strings.TrimSpace(in.Entidad),
		EntidadID:   strings.TrimSpace(in.EntidadID),
		Datos:       in.Datos,
		CreatedAt:   s.now(),
	}

	if err := s.repo.Append(ctx, e); err != nil {
		s.log.Error("no se pudo escribir la bitácora", map[string]any{
			"accion": e.Accion, "error": err.Error(),
		})
	}
}

func (s *Service) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListRecent(ctx, limit)
}
