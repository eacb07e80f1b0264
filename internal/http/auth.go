package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// DeviceAuth 设备 JWT 认证中间件
// 设备注册时签发的 token 通过 Authorization: Bearer 头携带
type DeviceAuth struct {
	secret []byte
	logger *zap.Logger
}

// NewDeviceAuth 创建设备认证中间件
func NewDeviceAuth(secret string, logger *zap.Logger) *DeviceAuth {
	return &DeviceAuth{
		secret: []byte(secret),
		logger: logger,
	}
}

// Middleware 校验请求的设备 token
func (a *DeviceAuth) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Access Denied. No token provided.")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			writeError(w, http.StatusUnauthorized, "Invalid token format.")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return a.secret, nil
		})
		if err != nil || !token.Valid {
			a.logger.Warn("Device token validation failed", zap.Error(err))
			writeError(w, http.StatusForbidden, "Invalid or expired token.")
			return
		}

		next(w, r)
	}
}
