package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shaiso/Reel/internal/provider"
)

// JWTTokenName — имя обработчика в конфигурации провайдера.
const JWTTokenName = "jwt_token"

const (
	defaultTokenTTL = 30 * time.Minute

	// tokenLeeway — запас на расхождение часов с вендором.
	tokenLeeway = 5 * time.Second
)

// JWTToken заменяет статический ключ API подписанным токеном.
//
// Ключ — составная строка "<access_id>.<secret>" из параметра api_key
// (или default_params). Токен HS256 содержит iss=access_id, exp и nbf
// и кладётся в Authorization: Bearer. Любые варианты заголовка
// Authorization в другом регистре удаляются.
//
// Используется и для submit, и для query.
type JWTToken struct {
	ttl time.Duration
	now func() time.Time
}

// NewJWTToken создаёт обработчик. ttl <= 0 — 30 минут.
func NewJWTToken(ttl time.Duration) *JWTToken {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &JWTToken{ttl: ttl, now: time.Now}
}

// Name реализует provider.Handler.
func (h *JWTToken) Name() string { return JWTTokenName }

// Call реализует provider.Caller.
func (h *JWTToken) Call(ctx context.Context, call *provider.Call) ([]byte, error) {
	if err := h.sign(call); err != nil {
		return nil, err
	}
	return call.Send(ctx, call.Request)
}

// Query реализует provider.Querier.
func (h *JWTToken) Query(ctx context.Context, call *provider.Call) ([]byte, error) {
	if err := h.sign(call); err != nil {
		return nil, err
	}
	return call.Send(ctx, call.Request)
}

func (h *JWTToken) sign(call *provider.Call) error {
	key := apiKey(call)
	accessID, secret, ok := strings.Cut(key, ".")
	if !ok || accessID == "" || secret == "" {
		return fmt.Errorf("%w: %s: api_key must look like <access_id>.<secret>", ErrBadCredentials, JWTTokenName)
	}

	token, err := h.Token(accessID, secret)
	if err != nil {
		return err
	}

	call.Request.SetHeader("Authorization", "Bearer "+token)
	return nil
}

// Token подписывает токен для пары access_id/secret.
func (h *JWTToken) Token(accessID, secret string) (string, error) {
	now := h.now()
	claims := jwt.RegisteredClaims{
		Issuer:    accessID,
		ExpiresAt: jwt.NewNumericDate(now.Add(h.ttl)),
		NotBefore: jwt.NewNumericDate(now.Add(-tokenLeeway)),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// apiKey берёт ключ из параметров вызова, затем из default_params.
func apiKey(call *provider.Call) string {
	if s, ok := call.Params["api_key"].(string); ok && s != "" {
		return s
	}
	if call.Config != nil {
		if s, ok := call.Config.DefaultParams["api_key"].(string); ok {
			return s
		}
	}
	return ""
}
