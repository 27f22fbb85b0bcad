package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"questhub/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const callerKey = "caller_address"

// SignerAuth validates session tokens issued by the external Signer
// service after wallet authentication. The core never sees the wallet
// handshake; it only trusts the Signer's HMAC.
type SignerAuth struct {
	secret    []byte
	debugMode bool
}

func NewSignerAuth(secret string, debugMode bool) *SignerAuth {
	return &SignerAuth{
		secret:    []byte(secret),
		debugMode: debugMode,
	}
}

type sessionClaims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

func (a *SignerAuth) SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Info("missing authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			log.Info("invalid authorization header format")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")

		address, err := a.ExtractAddress(token)
		if err != nil {
			log.Info("invalid session token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			return
		}

		c.Set(callerKey, address)
		c.Next()
	}
}

// ExtractAddress verifies the token signature and expiry and returns
// the wallet address the Signer attested.
func (a *SignerAuth) ExtractAddress(token string) (string, error) {
	var claims sessionClaims

	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		if a.debugMode {
			// Debug mode skips signature checks so local clients can
			// mint their own tokens; claims are still parsed.
			if addr, parseErr := unsafeAddress(token); parseErr == nil {
				return addr, nil
			}
		}
		return "", err
	}

	if !parsed.Valid || claims.Address == "" {
		return "", fmt.Errorf("token has no address claim")
	}
	return strings.ToLower(claims.Address), nil
}

func unsafeAddress(token string) (string, error) {
	var claims sessionClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return "", err
	}
	if claims.Address == "" {
		return "", fmt.Errorf("token has no address claim")
	}
	return strings.ToLower(claims.Address), nil
}

// Caller returns the authenticated wallet address stashed by
// SessionMiddleware.
func Caller(c *gin.Context) (string, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return "", false
	}
	address, ok := v.(string)
	return address, ok && address != ""
}

// IssueForTest mints a short-lived token signed with the same secret.
// Handy for local development against a stub Signer.
func (a *SignerAuth) IssueForTest(address string, ttl time.Duration) (string, error) {
	claims := sessionClaims{
		Address: strings.ToLower(address),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
