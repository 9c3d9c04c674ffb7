package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// ErrOAuthState indicates a forged, expired or replayed OAuth state.
var ErrOAuthState = errors.New("identity: invalid oauth state")

// OAuthIdentity is what an external provider tells us about the user.
type OAuthIdentity struct {
	Subject string
	Email   string
	Name    string
}

// OAuthProvider is a third-party OAuth2 sign-in provider.
type OAuthProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (OAuthIdentity, error)
}

// Google endpoints.
var (
	GoogleEndpoint = oauth2.Endpoint{
		AuthURL:   "https://accounts.google.com/o/oauth2/auth",
		TokenURL:  "https://oauth2.googleapis.com/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// OIDCProvider signs users in through an OAuth2 authorization code flow and
// reads the OpenID userinfo document.
type OIDCProvider struct {
	name        string
	config      *oauth2.Config
	userInfoURL string
}

// NewOIDCProvider constructs a provider for any OpenID-compatible endpoint.
func NewOIDCProvider(name string, config *oauth2.Config, userInfoURL string) *OIDCProvider {
	return &OIDCProvider{name: name, config: config, userInfoURL: userInfoURL}
}

// NewGoogleProvider constructs the Google provider. redirectURL is the
// absolute callback URL registered with Google.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *OIDCProvider {
	return NewOIDCProvider("google", &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     GoogleEndpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}, GoogleUserInfoURL)
}

// Name returns the provider key used in URLs and account links.
func (p *OIDCProvider) Name() string { return p.name }

// AuthCodeURL returns the consent page URL.
func (p *OIDCProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for the user's identity.
func (p *OIDCProvider) Exchange(ctx context.Context, code string) (OAuthIdentity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return OAuthIdentity{}, fmt.Errorf("exchange code: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return OAuthIdentity{}, err
	}
	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return OAuthIdentity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return OAuthIdentity{}, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}
	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return OAuthIdentity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Sub == "" || info.Email == "" || !info.EmailVerified {
		return OAuthIdentity{}, errors.New("userinfo: verified email required")
	}
	return OAuthIdentity{Subject: info.Sub, Email: info.Email, Name: info.Name}, nil
}

// stateClaims is the payload of the signed OAuth state parameter.
type stateClaims struct {
	jwt.RegisteredClaims
	Role     Role   `json:"role"`
	Provider string `json:"prv"`
}

// StateSigner issues and verifies the OAuth state parameter. The token binds
// the requested portal role and a nonce that is also kept in the session.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner constructs a StateSigner.
func NewStateSigner(secret string) *StateSigner {
	return &StateSigner{secret: []byte(secret), ttl: 10 * time.Minute, now: time.Now}
}

// Issue returns the signed state and its nonce.
func (s *StateSigner) Issue(role Role, provider string) (state, nonce string, err error) {
	now := s.now()
	nonce = uuid.NewString()
	claims := stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        nonce,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Role:     role,
		Provider: provider,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign oauth state: %w", err)
	}
	return signed, nonce, nil
}

// Verify checks the signature, expiry, provider and nonce and returns the role.
func (s *StateSigner) Verify(state, nonce, provider string) (Role, error) {
	var claims stateClaims
	token, err := jwt.ParseWithClaims(state, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return 0, ErrOAuthState
	}
	if nonce == "" || claims.ID != nonce || claims.Provider != provider || !claims.Role.Valid() {
		return 0, ErrOAuthState
	}
	return claims.Role, nil
}
