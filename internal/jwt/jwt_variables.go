package jwt

import "sync"

const (
	RoleUser Role = iota
)

var (
	secretsMu   sync.RWMutex
	RoleSecrets = map[Role]string{}
)

// Configure installs the signing secret for user access tokens.
func Configure(userSecret string) {
	secretsMu.Lock()
	defer secretsMu.Unlock()
	RoleSecrets[RoleUser] = userSecret
}

func secretFor(role Role) (string, bool) {
	secretsMu.RLock()
	defer secretsMu.RUnlock()
	secret, ok := RoleSecrets[role]
	if !ok || secret == "" {
		return "", false
	}
	return secret, true
}
