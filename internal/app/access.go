package app

import (
	"slices"
	"strings"

	"quiz-attempt-service/internal/domain"
)

// Gate resolves bearer credentials and enforces a role allow-list.
// An empty allow-list admits any authenticated caller.
type Gate struct {
	verifier TokenVerifier
	roles    []domain.Role
}

func NewGate(verifier TokenVerifier, roles ...domain.Role) Gate {
	return Gate{verifier: verifier, roles: roles}
}

// Check parses an Authorization header value ("Bearer <token>" or a bare token).
func (g Gate) Check(authorization string) (domain.Principal, error) {
	token := strings.TrimSpace(authorization)
	if len(token) >= 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return domain.Principal{}, domain.ErrMissingCredential
	}
	principal, err := g.verifier.Verify(token)
	if err != nil {
		return domain.Principal{}, domain.ErrInvalidCredential
	}
	if err := Authorize(principal, g.roles...); err != nil {
		return domain.Principal{}, err
	}
	return principal, nil
}

// Authorize fails with domain.ErrAccessDenied unless the principal holds one of roles.
func Authorize(principal domain.Principal, roles ...domain.Role) error {
	if len(roles) == 0 || slices.Contains(roles, principal.Role) {
		return nil
	}
	return domain.ErrAccessDenied
}
