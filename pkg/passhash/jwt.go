package passhash

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig параметры выпуска и проверки токенов
type JWTConfig struct {
	SecretKey          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
}

// DefaultJWTConfig возвращает настройки по умолчанию
func DefaultJWTConfig() *JWTConfig {
	return &JWTConfig{
		SecretKey:          "change-me-in-production",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		Issuer:             "routeopt-auth",
	}
}

// Claims данные пользователя внутри токена
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager выпускает и проверяет HS256 токены.
// Парсер собирается один раз: он фиксирует допустимый алгоритм
// и issuer, если тот задан в конфигурации.
type JWTManager struct {
	cfg    *JWTConfig
	parser *jwt.Parser
}

// NewJWTManager создаёт менеджер; nil означает настройки по умолчанию
func NewJWTManager(cfg *JWTConfig) *JWTManager {
	if cfg == nil {
		cfg = DefaultJWTConfig()
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &JWTManager{cfg: cfg, parser: jwt.NewParser(opts...)}
}

// GenerateAccessToken выпускает короткоживущий access token
func (m *JWTManager) GenerateAccessToken(userID, username, role string) (string, error) {
	return m.issue(userID, username, role, m.cfg.AccessTokenExpiry)
}

// GenerateRefreshToken выпускает refresh token
func (m *JWTManager) GenerateRefreshToken(userID, username, role string) (string, error) {
	return m.issue(userID, username, role, m.cfg.RefreshTokenExpiry)
}

func (m *JWTManager) issue(userID, username, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.cfg.SecretKey))
}

// ValidateToken разбирает и проверяет токен, возвращая его claims
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := m.parser.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return []byte(m.cfg.SecretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// RefreshAccessToken выпускает новый access token по валидному refresh token
func (m *JWTManager) RefreshAccessToken(refreshToken string) (string, *Claims, error) {
	claims, err := m.ValidateToken(refreshToken)
	if err != nil {
		return "", nil, err
	}

	access, err := m.GenerateAccessToken(claims.UserID, claims.Username, claims.Role)
	if err != nil {
		return "", nil, err
	}
	return access, claims, nil
}
