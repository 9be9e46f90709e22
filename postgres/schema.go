package postgres

import "fmt"

const (
	tableTemplate = `CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	receiver VARCHAR(64) NOT NULL,
	payload TEXT NOT NULL,
	status SMALLINT NOT NULL DEFAULT 0,
	attempts INTEGER NOT NULL DEFAULT 0,
	claim_token TEXT NULL,
	claimed_at TIMESTAMPTZ NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	sent_at TIMESTAMPTZ NULL
)`
	claimIndexTemplate  = `CREATE INDEX IF NOT EXISTS %s_status_created_idx ON %s (status, created_at, id)`
	expiryIndexTemplate = `CREATE INDEX IF NOT EXISTS %s_status_claimed_idx ON %s (status, claimed_at)`

	authorizationTemplate = `CREATE TABLE IF NOT EXISTS %s (
	token TEXT PRIMARY KEY,
	authorized BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
)

// Schema returns the DDL statements for the message table and its indexes.
func Schema(table string) ([]string, error) {
	name, err := sanitizeTableName(table)
	if err != nil {
		return nil, err
	}
	prefix := indexPrefix(name)

	return []string{
		fmt.Sprintf(tableTemplate, name),
		fmt.Sprintf(claimIndexTemplate, prefix, name),
		fmt.Sprintf(expiryIndexTemplate, prefix, name),
	}, nil
}

// AuthorizationSchema returns the DDL for the token authorization table.
func AuthorizationSchema(table string) (string, error) {
	name, err := sanitizeTableName(table)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(authorizationTemplate, name), nil
}
