package mysql

import (
	"context"
	"database/sql"
	"errors"
)

// IsAuthorized looks up the token in the authorization table. Unknown tokens are not authorized.
func (s *Store) IsAuthorized(ctx context.Context, token string) (bool, error) {
	var authorized bool
	err := s.db.QueryRowContext(ctx, s.queries.isAuthorized, token).Scan(&authorized)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, s.storageError("authorize", err)
	}

	return authorized, nil
}
