package memory

import "context"

// IsAuthorized reports whether token was granted. Unknown tokens are not authorized.
func (s *Store) IsAuthorized(ctx context.Context, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.authMu.RLock()
	defer s.authMu.RUnlock()

	return s.tokens[token], nil
}

// Grant authorizes token to submit messages.
func (s *Store) Grant(token string) {
	s.setAuthorized(token, true)
}

// Revoke keeps token known but no longer authorized.
func (s *Store) Revoke(token string) {
	s.setAuthorized(token, false)
}

func (s *Store) setAuthorized(token string, authorized bool) {
	s.authMu.Lock()
	defer s.authMu.Unlock()

	s.tokens[token] = authorized
}
