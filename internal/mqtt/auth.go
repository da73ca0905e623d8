package mqtt

import (
	"time"

	"github.com/dgrijalva/jwt-go"
)

// TokenCredentialProvider mints the (username, password) pair connect() sends on CONNECT,
// in place of a static username/password pair. Several cloud IoT brokers expect a signed JWT
// in the password field, with username carrying a key id or left empty (§4.4.8).
type TokenCredentialProvider interface {
	// Credentials returns the username and password to present on the next CONNECT.
	Credentials() (username string, password []byte, err error)
}

// JWTCredentialProvider signs a fresh token with the given claims/key shortly before each
// CONNECT and caches it until it is within refreshBefore of expiring.
type JWTCredentialProvider struct {
	username      string
	signingMethod jwt.SigningMethod
	key           interface{}
	audience      string
	ttl           time.Duration
	refreshBefore time.Duration

	cached    []byte
	expiresAt time.Time
	now       func() time.Time
}

// NewJWTCredentialProvider builds a provider that signs tokens for audience, valid for ttl,
// refreshing refreshBefore ahead of expiry.
func NewJWTCredentialProvider(username, audience string, ttl, refreshBefore time.Duration, method jwt.SigningMethod, key interface{}) *JWTCredentialProvider {
	return &JWTCredentialProvider{
		username:      username,
		signingMethod: method,
		key:           key,
		audience:      audience,
		ttl:           ttl,
		refreshBefore: refreshBefore,
		now:           time.Now,
	}
}

// Credentials implements TokenCredentialProvider, minting a fresh token when the cached one
// is missing or close to expiry.
func (p *JWTCredentialProvider) Credentials() (string, []byte, error) {
	now := p.now()
	if p.cached == nil || now.Add(p.refreshBefore).After(p.expiresAt) {
		expiresAt := now.Add(p.ttl)
		claims := jwt.StandardClaims{
			Audience:  p.audience,
			IssuedAt:  now.Unix(),
			ExpiresAt: expiresAt.Unix(),
		}
		token := jwt.NewWithClaims(p.signingMethod, claims)
		signed, err := token.SignedString(p.key)
		if err != nil {
			return "", nil, &ValueError{Field: "TokenCredentialProvider", Detail: err.Error()}
		}
		p.cached = []byte(signed)
		p.expiresAt = expiresAt
	}
	return p.username, p.cached, nil
}
