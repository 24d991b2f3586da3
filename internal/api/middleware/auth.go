// auth.go — JWT middleware: извлечение личности вызывающего.
// Ядру нужны только идентификатор (sub) и признак администратора;
// механика сессий и выдача токенов — забота внешнего IdP.
// Подпись проверяется через JWKS (MicahParks/keyfunc).
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/gosharebin/internal/api/errors"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyClaims — извлечённые claims в контексте запроса.
const ContextKeyClaims contextKey = "jwt_claims"

// Claims — личность вызывающего, извлечённая из JWT.
type Claims struct {
	// Subject — sub из JWT, идентификатор владельца.
	Subject string
	// IsAdmin — вызывающий имеет административную роль.
	IsAdmin bool
}

// ClaimsFromContext возвращает Claims из контекста запроса или nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(ContextKeyClaims).(*Claims)
	return claims
}

// JWTAuth — JWT middleware.
type JWTAuth struct {
	keyfunc   jwt.Keyfunc
	issuer    string
	adminRole string
	logger    *slog.Logger
}

// NewJWTAuth создаёт middleware с проверкой подписи через JWKS.
// issuer — ожидаемый iss (пустая строка отключает проверку iss).
func NewJWTAuth(ctx context.Context, jwksURL, issuer, adminRole string, logger *slog.Logger) (*JWTAuth, error) {
	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, err
	}

	return NewJWTAuthWithKeyfunc(kf, issuer, adminRole, logger), nil
}

// NewJWTAuthWithKeyfunc создаёт middleware с готовым keyfunc.
// Используется в тестах и при статической конфигурации ключей.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, issuer, adminRole string, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		keyfunc:   kf.Keyfunc,
		issuer:    issuer,
		adminRole: adminRole,
		logger:    logger.With(slog.String("component", "jwt_auth")),
	}
}

// tokenClaims — сырые claims токена.
type tokenClaims struct {
	jwt.RegisteredClaims
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// Middleware возвращает HTTP middleware, проверяющий Bearer-токен и
// помещающий Claims в контекст запроса.
func (a *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				apierrors.Unauthorized(w, "Ожидается Bearer-токен")
				return
			}

			opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "ES256"})}
			if a.issuer != "" {
				opts = append(opts, jwt.WithIssuer(a.issuer))
			}

			var tc tokenClaims
			token, err := jwt.ParseWithClaims(tokenStr, &tc, a.keyfunc, opts...)
			if err != nil || !token.Valid {
				a.logger.Warn("Невалидный JWT", slog.String("error", errString(err)))
				apierrors.Unauthorized(w, "Невалидный токен")
				return
			}
			if tc.Subject == "" {
				apierrors.Unauthorized(w, "Токен без sub")
				return
			}

			claims := &Claims{Subject: tc.Subject}
			for _, role := range tc.RealmAccess.Roles {
				if role == a.adminRole {
					claims.IsAdmin = true
					break
				}
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func errString(err error) string {
	if err == nil {
		return "токен не прошёл валидацию"
	}
	return err.Error()
}
