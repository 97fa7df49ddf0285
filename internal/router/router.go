package router

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"dental-clinic-backend/internal/adapters/auth/jwtauth"
	"dental-clinic-backend/internal/adapters/channel/console"
	"dental-clinic-backend/internal/adapters/credentials/memcreds"
	mem "dental-clinic-backend/internal/adapters/storage/memory"
	pg "dental-clinic-backend/internal/adapters/storage/postgres"
	_ "dental-clinic-backend/internal/docs"
	"dental-clinic-backend/internal/domain/accounts"
	"dental-clinic-backend/internal/domain/appointments"
	"dental-clinic-backend/internal/domain/audit"
	"dental-clinic-backend/internal/domain/notifications"
	"dental-clinic-backend/internal/domain/preferences"
	"dental-clinic-backend/internal/middleware"
	"dental-clinic-backend/internal/platform/logger"
	"dental-clinic-backend/internal/ports/auth"
	"dental-clinic-backend/internal/ports/channel"
	"dental-clinic-backend/internal/ports/credentials"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)
	TokenIssuer  *jwtauth.Issuer   // puede ser nil: /auth/login responde 503

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	Log logger.Logger
}

// passwordVerifier es lo que el login necesita del store de credenciales.
type passwordVerifier interface {
	Verify(ctx context.Context, email, pass string) (bool, error)
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			} else {
				log.Warn("no se pudo abrir Postgres, usando memoria", map[string]any{
					"error": err.Error(),
				})
			}
		}
	}

	var (
		accountsRepo  accounts.Repository
		apptRepo      appointments.Repository
		slotsRepo     appointments.SlotRepository
		typesRepo     appointments.TypeRepository
		prefsRepo     preferences.Repository
		devicesRepo   preferences.DeviceRepository
		notifRepo     notifications.Repository
		templatesRepo notifications.TemplateRepository
		auditRepo     audit.Repository
		credsStore    credentials.Store
		verifier      passwordVerifier
	)

	if db != nil {
		accountsRepo = pg.NewAccountsRepo(db)
		apptRepo = pg.NewAppointmentsRepo(db)
		slotsRepo = pg.NewSlotsRepo(db)
		typesRepo = pg.NewTypesRepo(db)
		prefsRepo = pg.NewPreferencesRepo(db)
		devicesRepo = pg.NewDevicesRepo(db)
		notifRepo = pg.NewNotificationsRepo(db)
		templatesRepo = pg.NewTemplatesRepo(db)
		auditRepo = pg.NewAuditRepo(db)

		store := pg.NewCredentialsStore(db)
		credsStore, verifier = store, store
	} else {
		accountsRepo = mem.NewAccountsRepo()
		apptRepo = mem.NewAppointmentsRepo()
		slotsRepo = mem.NewSlotsRepo()
		typesRepo = mem.NewTypesRepo()
		prefsRepo = mem.NewPreferencesRepo()
		devicesRepo = mem.NewDevicesRepo()
		notifRepo = mem.NewNotificationsRepo()
		templatesRepo = mem.NewTemplatesRepo()
		auditRepo = mem.NewAuditRepo()

		store := memcreds.New()
		credsStore, verifier = store, store
	}

	// Services por módulo
	auditSvc := audit.NewService(auditRepo, log)
	accountsSvc := accounts.NewService(accountsRepo, credsStore, log)
	prefsSvc := preferences.NewService(prefsRepo, devicesRepo, accountsSvc, log)

	senders := map[string]channel.Sender{
		string(preferences.ChannelEmail): console.New("email", log),
		string(preferences.ChannelPush):  console.New("push", log),
	}
	notifSvc := notifications.NewService(notifRepo, templatesRepo, senders, accountsSvc, prefsSvc, log)

	notifier := &appointmentNotifier{prefs: prefsSvc, notif: notifSvc, log: log}
	apptSvc := appointments.NewService(apptRepo, slotsRepo, typesRepo, accountsSvc, notifier, log)

	// chi exige todos los Use antes de la primera ruta.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.AuthContext(opts.AuthVerifier))

	// Bitácora: toda mutación relevante queda registrada.
	r.Use(middleware.Audit(auditSvc, func(r *http.Request, email string) (string, error) {
		return accountsSvc.PersonIDByEmail(r.Context(), email)
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Rutas por módulo
	resolvePrincipal := preferences.ResolveWith(func(r *http.Request, email string) (string, error) {
		return accountsSvc.PersonIDByEmail(r.Context(), email)
	})
	accounts.RegisterRoutes(r, accountsSvc)
	appointments.RegisterRoutes(r, apptSvc)
	notifications.RegisterRoutes(r, notifSvc, resolvePrincipal)
	preferences.RegisterRoutes(r, prefsSvc, resolvePrincipal)
	audit.RegisterRoutes(r, auditSvc, accountsSvc)

	r.Post("/auth/login", loginHandler(verifier, accountsSvc, opts.TokenIssuer))

	r.Get("/swagger/*", httpSwagger.Handler())

	return r
}

// appointmentNotifier conecta la agenda con el pipeline de notificaciones:
// consulta las preferencias y encola la confirmación en los canales abiertos.
type appointmentNotifier struct {
	prefs *preferences.Service
	notif *notifications.Service
	log   logger.Logger
}

func (n *appointmentNotifier) AppointmentBooked(ctx context.Context, a appointments.Appointment) error {
	datos := map[string]any{
		"consulta_id": a.ID,
		"fecha":       a.Fecha.Format("2006-01-02"),
	}

	for _, canal := range []preferences.Channel{preferences.ChannelEmail, preferences.ChannelPush} {
		ok, err := n.prefs.ShouldSend(ctx, a.PatientID, preferences.TipoConfirmacionCita, canal)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if _, err := n.notif.Enqueue(ctx, notifications.EnqueueInput{
			PersonID: a.PatientID,
			Tipo:     preferences.TipoConfirmacionCita,
			Canal:    string(canal),
			Datos:    datos,
		}); err != nil {
			return err
		}
	}
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func loginHandler(verifier passwordVerifier, accountsSvc *accounts.Service, issuer *jwtauth.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if issuer == nil {
			http.Error(w, "login no configurado", http.StatusServiceUnavailable)
			return
		}

		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			http.Error(w, "json inválido", http.StatusBadRequest)
			return
		}

		ok, err := verifier.Verify(r.Context(), req.Email, req.Password)
		if err != nil || !ok {
			// Mismo 401 para email inexistente y password incorrecto.
			http.Error(w, "credenciales inválidas", http.StatusUnauthorized)
			return
		}

		personID, err := accountsSvc.PersonIDByEmail(r.Context(), req.Email)
		if err != nil {
			http.Error(w, "credenciales inválidas", http.StatusUnauthorized)
			return
		}
		person, err := accountsSvc.GetByID(r.Context(), personID)
		if err != nil {
			http.Error(w, "credenciales inválidas", http.StatusUnauthorized)
			return
		}

		token, expires, err := issuer.Issue(auth.Claims{
			UserID:  person.ID,
			Email:   person.Email,
			IsStaff: person.Role == accounts.RoleAdministrador,
		})
		if err != nil {
			http.Error(w, "no se pudo emitir el token", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, loginResponse{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresAt:   expires,
		})
	}
}
