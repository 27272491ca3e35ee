package middleware

import (
	stderrors "errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/wfunc/countdown-game/internal/errors"
)

// PlayerClaims 玩家身份令牌
type PlayerClaims struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier 校验外部账号服务签发的HS256令牌
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier 创建令牌校验器，secret 为空时返回nil（不校验）
func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	if secret == "" {
		return nil
	}
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Issue 签发令牌（测试和运维工具使用）
func (v *TokenVerifier) Issue(playerID, playerName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &PlayerClaims{
		PlayerID:   playerID,
		PlayerName: playerName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    v.issuer,
			Subject:   playerID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify 校验令牌并返回玩家身份
func (v *TokenVerifier) Verify(tokenString string) (*PlayerClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &PlayerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Wrap(err, errors.ErrUnauthorized, "token expired")
		}
		return nil, errors.Wrap(err, errors.ErrUnauthorized)
	}
	if !token.Valid || claims.PlayerID == "" {
		return nil, errors.New(errors.ErrUnauthorized, "token carries no player id")
	}
	return claims, nil
}

// PlayerToken 校验 Authorization: Bearer 令牌，通过后以令牌中的身份覆盖请求头身份
//
// verifier 为nil或请求未携带令牌时直接放行。
func PlayerToken(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			appErr := errors.New(errors.ErrUnauthorized, "malformed authorization header").WithField("Authorization")
			c.AbortWithStatusJSON(appErr.HTTPStatus(), errors.NewErrorResponse(appErr, GetRequestID(c)))
			return
		}

		claims, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			appErr, _ := errors.As(err)
			c.AbortWithStatusJSON(appErr.HTTPStatus(), errors.NewErrorResponse(appErr, GetRequestID(c)))
			return
		}

		c.Set(PlayerIDKey, claims.PlayerID)
		if claims.PlayerName != "" {
			c.Set(PlayerNameKey, claims.PlayerName)
		}
		c.Next()
	}
}
