package identity

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/auth/v2"
	"github.com/go-pkgz/auth/v2/avatar"
	"github.com/go-pkgz/auth/v2/logger"
	"github.com/go-pkgz/auth/v2/provider/sender"
	"github.com/go-pkgz/auth/v2/token"

	"cartelera/config"
	"cartelera/models"
)

var ErrSecretRequired = errors.New("auth secret not configured")

// emailTemplate is the body of the magic-link sign-in mail. The link carries
// the one-time token back to the email provider's confirmation endpoint.
const emailTemplate = `<p>Hola,</p>
<p>Haz clic en el enlace para entrar a Cartelera:</p>
<p><a href="{{.Site}}/auth/email/login?token={{.Token}}">Entrar</a></p>
<p>Si no pediste este correo puedes ignorarlo.</p>`

// RoleResolver looks up application roles for authenticated users.
type RoleResolver interface {
	Ensure(id, email string) (models.Profile, error)
	Role(id string) (string, error)
}

// Service owns the session lifecycle. Authentication itself is delegated to
// hosted providers (OAuth and email magic link); this service adds role
// resolution and change notifications on top.
type Service struct {
	auth  *auth.Service
	roles RoleResolver

	mu   sync.RWMutex
	subs []func(models.Session)
}

// NewService builds the delegated auth stack from configuration. The OAuth
// provider and the email provider are each enabled only when configured.
func NewService(cfg config.AuthSettings, roles RoleResolver) (*Service, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, ErrSecretRequired
	}

	s := &Service{roles: roles}

	opts := auth.Opts{
		SecretReader: token.SecretFunc(func(string) (string, error) {
			return cfg.Secret, nil
		}),
		ClaimsUpd:      token.ClaimsUpdFunc(s.updateClaims),
		TokenDuration:  time.Hour,
		CookieDuration: 30 * 24 * time.Hour,
		Issuer:         "cartelera",
		URL:            strings.TrimRight(cfg.PublicURL, "/"),
		AvatarStore:    avatar.NewLocalFS(cfg.AvatarDir),
		Logger:         logger.Std,
	}

	svc := auth.NewService(opts)
	if cfg.Google.ClientID != "" {
		svc.AddProvider("google", cfg.Google.ClientID, cfg.Google.ClientSecret)
	}
	if cfg.Email.Host != "" {
		emailSender := sender.NewEmailClient(sender.EmailParams{
			Host:         cfg.Email.Host,
			Port:         cfg.Email.Port,
			SMTPUserName: cfg.Email.Username,
			SMTPPassword: cfg.Email.Password,
			From:         cfg.Email.From,
			Subject:      cfg.Email.Subject,
			ContentType:  "text/html",
			TLS:          cfg.Email.TLS,
		}, logger.Std)
		svc.AddVerifProvider("email", emailTemplate, emailSender)
	}

	s.auth = svc
	return s, nil
}

// Handlers returns the auth and avatar HTTP handlers, typically mounted at
// /auth and /avatar. The auth handler is wrapped so sign-out events reach
// subscribers.
func (s *Service) Handlers() (http.Handler, http.Handler) {
	authHandler, avatarHandler := s.auth.Handlers()
	return s.observeSignOut(authHandler), avatarHandler
}

// Trace returns middleware that attaches the user to the request context
// when a valid session is present, without rejecting anonymous requests.
func (s *Service) Trace(next http.Handler) http.Handler {
	m := s.auth.Middleware()
	return m.Trace(next)
}

// Current returns the read-only session for the request. Requests without a
// valid token get the guest session. A missing role attribute falls back to
// a live profile lookup, and a failed lookup demotes to the default
// non-privileged role instead of signing the user out.
func (s *Service) Current(r *http.Request) models.Session {
	user, err := token.GetUserInfo(r)
	if err != nil {
		return models.GuestSession()
	}

	role := user.StrAttr("role")
	if role == "" {
		if resolved, err := s.roles.Role(user.ID); err == nil {
			role = resolved
		} else {
			role = models.RoleUser
		}
	}

	return models.Session{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   role,
	}
}

// Subscribe registers a callback invoked on sign-in and sign-out.
func (s *Service) Subscribe(fn func(models.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// updateClaims runs on every token issue/refresh: it makes sure a profile
// exists for the user and stamps the resolved role into the claims. A failed
// profile lookup demotes to the default role, never blocks the sign-in.
func (s *Service) updateClaims(claims token.Claims) token.Claims {
	if claims.User == nil {
		return claims
	}

	role := models.RoleUser
	profile, err := s.roles.Ensure(claims.User.ID, claims.User.Email)
	if err != nil {
		log.Printf("[identity] profile lookup for %s failed, using default role: %v", claims.User.ID, err)
	} else {
		role = profile.Role
	}
	claims.User.SetStrAttr("role", role)

	s.notify(models.Session{
		UserID: claims.User.ID,
		Name:   claims.User.Name,
		Email:  claims.User.Email,
		Role:   role,
	})
	return claims
}

func (s *Service) observeSignOut(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signedIn := s.Current(r).SignedIn()
		next.ServeHTTP(w, r)
		if signedIn && strings.HasSuffix(r.URL.Path, "/logout") {
			s.notify(models.GuestSession())
		}
	})
}

func (s *Service) notify(session models.Session) {
	s.mu.RLock()
	subs := append(([]func(models.Session))(nil), s.subs...)
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(session)
	}
}
