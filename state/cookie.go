package state

import (
	"errors"
	"time"

	"github.com/JerryLinyx/PressGO/utils"
)

const cookieKind = "browser_session"

// CookieCodec signs browser session ids so a cookie cannot name another
// browser's record.
type CookieCodec struct {
	secret []byte
	ttl    time.Duration
}

func NewCookieCodec(secret string, ttl time.Duration) *CookieCodec {
	return &CookieCodec{secret: []byte(secret), ttl: ttl}
}

func (c *CookieCodec) TTL() time.Duration {
	return c.ttl
}

func (c *CookieCodec) Encode(sessionID string) (string, error) {
	token, _, err := utils.GenerateJWT(c.secret, sessionID, utils.Claims{Kind: cookieKind}, c.ttl)
	return token, err
}

func (c *CookieCodec) Decode(value string) (string, error) {
	claims, err := utils.ParseJWT(c.secret, value)
	if err != nil {
		return "", err
	}
	if claims.Kind != cookieKind {
		return "", errors.New("state: not a session cookie")
	}
	return claims.Subject, nil
}
