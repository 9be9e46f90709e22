package mysql

import "fmt"

const schemaTemplate = `CREATE TABLE IF NOT EXISTS %s (
	id BIGINT NOT NULL AUTO_INCREMENT,
	receiver VARCHAR(64) NOT NULL,
	payload TEXT NOT NULL,
	status SMALLINT NOT NULL DEFAULT 0,
	attempts INT NOT NULL DEFAULT 0,
	claim_token CHAR(36) NULL,
	claimed_at TIMESTAMP(6) NULL,
	created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
	updated_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
	sent_at TIMESTAMP(6) NULL,
	PRIMARY KEY (id),
	INDEX idx_status_created (status, created_at, id),
	INDEX idx_status_claimed (status, claimed_at)
);`

const authSchemaTemplate = `CREATE TABLE IF NOT EXISTS %s (
	token VARCHAR(255) NOT NULL,
	authorized BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
	PRIMARY KEY (token)
);`

// Schema returns the DDL for the message table.
func Schema(table string) (string, error) {
	name, err := sanitizeTableName(table)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(schemaTemplate, name), nil
}

// AuthorizationSchema returns the DDL for the token authorization table.
func AuthorizationSchema(table string) (string, error) {
	name, err := sanitizeTableName(table)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(authSchemaTemplate, name), nil
}
