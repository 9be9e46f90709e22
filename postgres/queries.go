package postgres

import "fmt"

const messageColumns = "id, receiver, payload, status, attempts, claim_token, claimed_at, created_at"

type queries struct {
	insert         string
	claim          string
	markSent       string
	release        string
	requeueExpired string
	status         string
	countQueued    string
	get            string
	isAuthorized   string
}

func newQueries(table, authTable string) queries {
	// $1 max attempts, $2 dead, $3 queued.
	releaseSet := "status = CASE WHEN $1 > 0 AND attempts + 1 >= $1 THEN $2::smallint ELSE $3::smallint END, " +
		"attempts = attempts + 1, claim_token = NULL, claimed_at = NULL, updated_at = now()"

	return queries{
		insert: fmt.Sprintf("INSERT INTO %s (receiver, payload, status, created_at) VALUES ($1, $2, $3, $4) RETURNING id", table),
		claim: fmt.Sprintf(
			"UPDATE %[1]s SET status = $1, claim_token = $2, claimed_at = $3, updated_at = $3 "+
				"WHERE id = (SELECT id FROM %[1]s WHERE status = $4 ORDER BY created_at ASC, id ASC LIMIT 1 FOR UPDATE SKIP LOCKED) "+
				"RETURNING %[2]s",
			table,
			messageColumns,
		),
		markSent: fmt.Sprintf(
			"UPDATE %s SET status = $1, sent_at = $2, updated_at = $2 "+
				"WHERE id = $3 AND status = $4 AND ($5 = '' OR claim_token = $5) RETURNING status",
			table,
		),
		release: fmt.Sprintf(
			"UPDATE %s SET %s WHERE id = $4 AND status = $5 AND ($6 = '' OR claim_token = $6) RETURNING status",
			table,
			releaseSet,
		),
		requeueExpired: fmt.Sprintf(
			"UPDATE %[1]s SET %[2]s WHERE id IN ("+
				"SELECT id FROM %[1]s WHERE status = $4 AND claimed_at < $5 "+
				"ORDER BY claimed_at ASC, id ASC LIMIT $6 FOR UPDATE SKIP LOCKED)",
			table,
			releaseSet,
		),
		status:       fmt.Sprintf("SELECT status FROM %s WHERE id = $1", table),
		countQueued:  fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE status = $1", table),
		get:          fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", messageColumns, table),
		isAuthorized: fmt.Sprintf("SELECT authorized FROM %s WHERE token = $1", authTable),
	}
}
