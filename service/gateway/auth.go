package gateway

import (
	"context"
	"time"

	"estategate/tools/errs"
	"estategate/tools/security"
)

func securityOptions(secret, alg string) security.Options {
	opts := security.DefaultOptions([]byte(secret))
	if alg != "" {
		opts.Alg = alg
	}
	return opts
}

// Authenticator gates entry into the gateway: it verifies the bearer
// credential and resolves the identity's display fields. A connection
// that fails here never touches presence or membership state.
type Authenticator struct {
	opts       security.Options
	identities IdentityProvider
	timeout    time.Duration
}

func NewAuthenticator(opts security.Options, identities IdentityProvider, timeout time.Duration) *Authenticator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Authenticator{opts: opts, identities: identities, timeout: timeout}
}

// Authenticate validates the credential and returns the resolved
// identity. Every failure mode (bad token, expired token, unknown
// account, slow lookup) is an authentication error; the client must
// re-handshake with a fresh credential.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, errs.ErrAuthentication.WithDetail("no token provided")
	}

	sub, err := security.Verify(a.opts, token)
	if err != nil {
		return Identity{}, errs.ErrAuthentication.Wrap(err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	identity, err := a.identities.Lookup(ctx, sub)
	if err != nil {
		return Identity{}, errs.ErrAuthentication.Wrap(err)
	}
	if identity.ID == "" {
		identity.ID = sub
	}
	return identity, nil
}
