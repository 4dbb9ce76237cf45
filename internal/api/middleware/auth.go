// auth.go — определение запросов администратора.
//
// Администратор не проходит политику доступа: файл раздаётся без блокировок,
// модерации и записи метаданных. Признаки администратора:
//   - Bearer JWT (RS256, ключи из JWKS), группы IdP которого дают роль admin;
//   - устаревший признак по Referer ({origin}/admin), только если включён
//     IG_ADMIN_REFERER_BYPASS. Referer задаётся клиентом, граница доверия слабая.
//
// Запрос без Authorization — публичный. Невалидный или просроченный токен — 401.
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/goartstore/image-gate/internal/api/errors"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyClaims — извлечённые claims в контексте запроса.
	ContextKeyClaims contextKey = "jwt_claims"
	// contextKeyRefererAdmin — признак администратора по Referer.
	contextKeyRefererAdmin contextKey = "referer_admin"
)

// Роли в порядке возрастания привилегий.
const (
	RoleReadonly = "readonly"
	RoleAdmin    = "admin"
)

// roleWeight — вес роли для сравнения.
var roleWeight = map[string]int{
	RoleReadonly: 1,
	RoleAdmin:    2,
}

// AuthClaims — claims JWT, помещаемые в контекст запроса.
type AuthClaims struct {
	// Subject — sub из JWT.
	Subject string
	// PreferredUsername — preferred_username из JWT.
	PreferredUsername string
	// Roles — роли из realm_access.roles.
	Roles []string
	// Groups — группы из JWT.
	Groups []string
	// EffectiveRole — роль из групп IdP (admin или "").
	EffectiveRole string
}

// IsAdmin — субъект имеет роль admin.
func (c *AuthClaims) IsAdmin() bool {
	return c != nil && c.EffectiveRole == RoleAdmin
}

// keycloakClaims — raw claims из JWT IdP.
type keycloakClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string       `json:"preferred_username"`
	RealmAccess       *realmAccess `json:"realm_access,omitempty"`
	Groups            []string     `json:"groups,omitempty"`
}

// realmAccess — вложенная структура realm_access.
type realmAccess struct {
	Roles []string `json:"roles"`
}

// JWTAuth — middleware проверки Bearer JWT через JWKS.
type JWTAuth struct {
	jwks        keyfunc.Keyfunc
	logger      *slog.Logger
	adminGroups []string
	issuer      string
	jwtLeeway   time.Duration
}

// NewJWTAuth создаёт JWT middleware с JWKS IdP.
// caCertPath — опциональный CA-сертификат JWKS endpoint,
// issuer — ожидаемый issuer (пустая строка — не проверяется).
func NewJWTAuth(
	jwksURL string,
	caCertPath string,
	issuer string,
	adminGroups []string,
	jwksClientTimeout time.Duration,
	jwksRefreshInterval time.Duration,
	jwtLeeway time.Duration,
	logger *slog.Logger,
) (*JWTAuth, error) {
	httpClient := &http.Client{Timeout: jwksClientTimeout}
	if caCertPath != "" {
		var err error
		httpClient, err = httpClientWithCA(caCertPath, jwksClientTimeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", caCertPath, err)
		}
		logger.Info("CA-сертификат для JWKS добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	// NoErrorReturnFirstHTTPReq — стартуем, даже если IdP ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewJWTAuthWithKeyfunc(k, issuer, adminGroups, jwtLeeway, logger), nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с готовым keyfunc (для тестов).
func NewJWTAuthWithKeyfunc(
	kf keyfunc.Keyfunc,
	issuer string,
	adminGroups []string,
	jwtLeeway time.Duration,
	logger *slog.Logger,
) *JWTAuth {
	return &JWTAuth{
		jwks:        kf,
		logger:      logger.With(slog.String("component", "jwt_auth")),
		adminGroups: adminGroups,
		issuer:      issuer,
		jwtLeeway:   jwtLeeway,
	}
}

// httpClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
func httpClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath) //nolint:gosec // G304: путь из конфигурации
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:    caCertPool,
				MinVersion: tls.VersionTLS12,
			},
		},
	}, nil
}

// Middleware возвращает HTTP middleware проверки JWT.
// Без заголовка Authorization запрос проходит как публичный.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			rawClaims := &keycloakClaims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			token, err := jwt.ParseWithClaims(parts[1], rawClaims, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
			if err != nil || !token.Valid {
				msg := "невалидный токен"
				if err != nil {
					msg = err.Error()
				}
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", msg),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			claims := j.buildAuthClaims(rawClaims)
			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// buildAuthClaims формирует AuthClaims: группы → роль,
// при отсутствии роли по группам — realm_access.roles.
func (j *JWTAuth) buildAuthClaims(raw *keycloakClaims) *AuthClaims {
	claims := &AuthClaims{
		Subject:           raw.Subject,
		PreferredUsername: raw.PreferredUsername,
		Groups:            raw.Groups,
	}
	if raw.RealmAccess != nil {
		claims.Roles = raw.RealmAccess.Roles
	}

	claims.EffectiveRole = mapGroupsToRole(claims.Groups, j.adminGroups)
	if claims.EffectiveRole == "" && len(claims.Roles) > 0 {
		var validRoles []string
		for _, r := range claims.Roles {
			if _, ok := roleWeight[r]; ok {
				validRoles = append(validRoles, r)
			}
		}
		claims.EffectiveRole = highestRole(validRoles)
	}

	return claims
}

// mapGroupsToRole определяет роль пользователя по группам IdP.
func mapGroupsToRole(groups, adminGroups []string) string {
	adminSet := toSet(adminGroups)
	for _, g := range groups {
		if adminSet[g] {
			return RoleAdmin
		}
	}
	return ""
}

// highestRole возвращает максимальную роль из набора.
func highestRole(roles []string) string {
	if len(roles) == 0 {
		return ""
	}
	highest := roles[0]
	for _, r := range roles[1:] {
		if roleWeight[r] > roleWeight[highest] {
			highest = r
		}
	}
	return highest
}

// toSet конвертирует срез строк в map для быстрого поиска.
func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}

// RefererAdmin возвращает middleware устаревшего признака администратора:
// Referer содержит {publicURL}/admin, где publicURL — публичный адрес gate.
// Пустой publicURL — адрес вычисляется из запроса (см. PublicBase).
func RefererAdmin(publicURL string, logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With(slog.String("component", "referer_admin"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			marker := strings.TrimRight(PublicBase(r, publicURL), "/") + "/admin"
			if strings.Contains(r.Referer(), marker) {
				log.Debug("Запрос администратора по Referer",
					slog.String("remote_addr", r.RemoteAddr),
				)
				r = r.WithContext(context.WithValue(r.Context(), contextKeyRefererAdmin, true))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PublicBase возвращает публичный адрес gate (scheme://host).
// override — адрес из конфигурации; пустой — схема берётся из
// X-Forwarded-Proto (TLS терминируется на ingress), хост из запроса.
func PublicBase(r *http.Request, override string) string {
	if override != "" {
		return strings.TrimRight(override, "/")
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" || proto == "http" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// --- Context helpers ---

// ClaimsFromContext извлекает AuthClaims из контекста запроса.
// Возвращает nil, если claims не найдены.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}

// IsAdmin — запрос администратора (JWT с ролью admin или Referer, если включён).
func IsAdmin(ctx context.Context) bool {
	if ClaimsFromContext(ctx).IsAdmin() {
		return true
	}
	byReferer, _ := ctx.Value(contextKeyRefererAdmin).(bool)
	return byReferer
}

// --- ReadinessChecker для JWKS ---

// JWKSReadinessChecker — проверка доступности JWKS endpoint IdP.
type JWKSReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

// NewJWKSReadinessChecker создаёт checker доступности JWKS.
func NewJWKSReadinessChecker(jwksURL, caCertPath string, readinessTimeout time.Duration) (*JWKSReadinessChecker, error) {
	client := &http.Client{Timeout: readinessTimeout}
	if caCertPath != "" {
		var err error
		client, err = httpClientWithCA(caCertPath, readinessTimeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA для readiness checker: %w", err)
		}
	}

	return &JWKSReadinessChecker{
		jwksURL: jwksURL,
		client:  client,
	}, nil
}

// CheckReady проверяет доступность JWKS endpoint.
// Недоступный IdP — degraded: публичная раздача файлов продолжает работать.
func (k *JWKSReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return "degraded", "ошибка создания запроса: " + err.Error()
	}
	resp, err := k.client.Do(req) //nolint:gosec // G107: URL из конфигурации
	if err != nil {
		return "degraded", fmt.Sprintf("JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "degraded", fmt.Sprintf("JWKS вернул статус %d", resp.StatusCode)
	}

	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return "degraded", fmt.Sprintf("JWKS: невалидный JSON: %v", err)
	}
	if len(jwksResp.Keys) == 0 {
		return "degraded", "JWKS: нет ключей"
	}

	return "ok", fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}
