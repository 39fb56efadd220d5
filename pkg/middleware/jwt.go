package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie はセッショントークンを保持するCookie名。
const SessionCookie = "session_id"

// jwtIssuer はセッショントークンの発行者。
const jwtIssuer = "restapi"

// コンテキストキー。
const (
	contextKeyUID   = "uid"
	contextKeyLogin = "login"
	contextKeyDB    = "db"
)

// JWTClaims はセッショントークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UID は認証済みユーザーのID。
	UID int64 `json:"uid"`
	// Login はユーザーのログイン名。
	Login string `json:"login"`
	// DB はセッションが発行されたデータベース識別子。
	DB string `json:"db"`
}

// GenerateJWT はユーザー情報からセッショントークンを生成し、有効期限とともに返す。
func GenerateJWT(secret string, uid int64, login, db string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    jwtIssuer,
		},
		UID:   uid,
		Login: login,
		DB:    db,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseJWT はトークンを検証してクレームを返す。
func ParseJWT(secret, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(jwtIssuer))
	if err != nil {
		return nil, fmt.Errorf("トークンの検証に失敗: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("トークンが無効です")
	}
	return claims, nil
}

// SessionAuth はセッショントークンを検証するGinミドルウェアを返す。
// トークンはAuthorizationヘッダー（Bearer）またはsession_id Cookieから取得する。
// 別のデータベース向けに発行されたトークンは拒否する。
// 検証に成功した場合、コンテキストに "uid"、"login"、"db" を設定する。
func SessionAuth(secret, db string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := sessionToken(c)
		if tokenString == "" {
			abortUnauthorized(c)
			return
		}

		claims, err := ParseJWT(secret, tokenString)
		if err != nil || claims.DB != db {
			abortUnauthorized(c)
			return
		}

		c.Set(contextKeyUID, claims.UID)
		c.Set(contextKeyLogin, claims.Login)
		c.Set(contextKeyDB, claims.DB)
		c.Next()
	}
}

// sessionToken はリクエストからトークン文字列を取り出す。
// Authorizationヘッダーが優先される。
func sessionToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			return ""
		}
		return tokenString
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"status":  http.StatusUnauthorized,
		"error":   "Session expired or invalid",
	})
}

// GetUID はGinコンテキストからユーザーIDを取得する。
// SessionAuthミドルウェアが事前に適用されている必要がある。
func GetUID(c *gin.Context) int64 {
	if v, ok := c.Get(contextKeyUID); ok {
		if uid, ok := v.(int64); ok {
			return uid
		}
	}
	return 0
}

// GetLogin はGinコンテキストからログイン名を取得する。
func GetLogin(c *gin.Context) string {
	return c.GetString(contextKeyLogin)
}
