package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderprovider/internal/access"
	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

// HeaderGuestID передаёт идентификатор гостевой сессии между запросами.
const HeaderGuestID = "X-Guest-ID"

// Claims — полезная нагрузка токена: sub содержит ID пользователя, role содержит его роль.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator проверяет bearer-токены HS256 и превращает их в access.Requester.
type Authenticator struct {
	secret []byte
	logger *log.Entry
	now    func() time.Time
}

// NewAuthenticator создаёт проверку токенов с общим секретом.
func NewAuthenticator(secret string, logger *log.Entry) *Authenticator {
	if logger == nil {
		logger = log.WithField("component", "http-auth")
	}
	return &Authenticator{
		secret: []byte(secret),
		logger: logger,
		now:    time.Now,
	}
}

// IssueToken подписывает токен для пользователя userID с ролью role.
func (a *Authenticator) IssueToken(userID string, role domain.Role, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticate разбирает токен и возвращает запрашивающего.
func (a *Authenticator) Authenticate(raw string) (access.Requester, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return access.Requester{}, errors.Join(domain.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return access.Requester{}, domain.ErrUnauthorized
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return access.Requester{}, errors.Join(domain.ErrUnauthorized, err)
	}
	if role != domain.RoleGuest && domain.IsGuestID(claims.Subject) {
		return access.Requester{}, domain.ErrUnauthorized
	}
	return access.Requester{ID: claims.Subject, Role: role}, nil
}

// Middleware кладёт запрашивающего в контекст запроса.
// Запрос без токена обслуживается как гость с ID из X-Guest-ID или новым ID сессии.
// Гостевой ID всегда несёт префикс domain.GuestIDPrefix, поэтому не совпадает с ID пользователя.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))

		var req access.Requester
		if header == "" {
			session := strings.TrimSpace(r.Header.Get(HeaderGuestID))
			if session == "" {
				session = uuid.NewString()
			}
			guestID := domain.GuestID(session)
			w.Header().Set(HeaderGuestID, guestID)
			req = access.Guest(guestID)
		} else {
			raw, found := strings.CutPrefix(header, "Bearer ")
			if !found {
				writeError(w, domain.ErrUnauthorized)
				return
			}
			authenticated, err := a.Authenticate(strings.TrimSpace(raw))
			if err != nil {
				a.logger.WithError(err).WithField("path", r.URL.Path).Debug("token rejected")
				writeError(w, domain.ErrUnauthorized)
				return
			}
			req = authenticated
		}

		next.ServeHTTP(w, r.WithContext(access.WithRequester(r.Context(), req)))
	})
}
