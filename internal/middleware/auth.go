// Package middleware содержит HTTP middleware сервиса обработки заказов.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type contextKey string

const operatorKey contextKey = "operator"

const (
	authCookieName = "operator_token"
	authTokenTTL   = 12 * time.Hour
	bearerPrefix   = "Bearer "

	// clockSkew допускает небольшое расхождение часов между экземплярами сервиса.
	clockSkew = time.Minute
)

// AuthMiddleware проверяет, что запрос выполняет оператор с подписанным токеном.
type AuthMiddleware struct {
	secretKey []byte
	now       func() time.Time
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
// При пустом ключе генерируется случайный, и токены не переживают перезапуск.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
		now:       time.Now,
	}
}

// Middleware проверяет токен из cookie или заголовка Authorization и добавляет оператора в контекст.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		operator, ok := a.parseToken(token)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), operatorKey, operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	if cookie, err := r.Cookie(authCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// IssueToken возвращает подписанный токен оператора вида operator.issuedAt.signature.
// Токен действителен authTokenTTL с момента выдачи.
func (a *AuthMiddleware) IssueToken(operator string) string {
	payload := operator + "." + strconv.FormatInt(a.now().Unix(), 10)
	return payload + "." + a.sign(payload)
}

// SetAuthCookie устанавливает cookie авторизации оператора и возвращает токен.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, operator string) string {
	token := a.IssueToken(operator)

	cookie := &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		Expires:  a.now().Add(authTokenTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
	return token
}

func (a *AuthMiddleware) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *AuthMiddleware) parseToken(token string) (string, bool) {
	i := strings.LastIndex(token, ".")
	if i <= 0 || i == len(token)-1 {
		return "", false
	}

	payload, signature := token[:i], token[i+1:]
	if !hmac.Equal([]byte(signature), []byte(a.sign(payload))) {
		return "", false
	}

	j := strings.LastIndex(payload, ".")
	if j <= 0 {
		return "", false
	}
	issuedUnix, err := strconv.ParseInt(payload[j+1:], 10, 64)
	if err != nil {
		return "", false
	}

	issued := time.Unix(issuedUnix, 0)
	now := a.now()
	if issued.After(now.Add(clockSkew)) || now.Sub(issued) > authTokenTTL {
		return "", false
	}

	return payload[:j], true
}

// GetOperatorFromContext извлекает имя оператора из контекста запроса.
func GetOperatorFromContext(ctx context.Context) (string, bool) {
	op, ok := ctx.Value(operatorKey).(string)
	return op, ok
}
