package mysql

import "fmt"

type queries struct {
	insert            string
	selectQueued      string
	markProcessing    string
	selectForReport   string
	markSent          string
	release           string
	requeueExpired    string
	requeueExpiredAll string
	countQueued       string
	get               string
	isAuthorized      string
}

func newQueries(table, authTable string) queries {
	cols := "id, receiver, payload, status, attempts, claim_token, claimed_at, created_at"
	releaseSet := "status = CASE WHEN ? > 0 AND attempts + 1 >= ? THEN ? ELSE ? END, " +
		"attempts = attempts + 1, claim_token = NULL, claimed_at = NULL"

	return queries{
		insert: fmt.Sprintf("INSERT INTO %s (receiver, payload, status, created_at) VALUES (?, ?, ?, ?)", table),
		selectQueued: fmt.Sprintf(
			"SELECT %s FROM %s WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT 1 FOR UPDATE SKIP LOCKED",
			cols,
			table,
		),
		markProcessing:  fmt.Sprintf("UPDATE %s SET status = ?, claim_token = ?, claimed_at = ? WHERE id = ?", table),
		selectForReport: fmt.Sprintf("SELECT status, claim_token, attempts FROM %s WHERE id = ? FOR UPDATE", table),
		markSent:        fmt.Sprintf("UPDATE %s SET status = ?, sent_at = ? WHERE id = ?", table),
		// status is assigned before attempts: MySQL evaluates SET from left to right.
		release: fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, releaseSet),
		requeueExpired: fmt.Sprintf(
			"UPDATE %s SET %s WHERE status = ? AND claimed_at < ? ORDER BY claimed_at ASC, id ASC LIMIT ?",
			table,
			releaseSet,
		),
		requeueExpiredAll: fmt.Sprintf("UPDATE %s SET %s WHERE status = ? AND claimed_at < ?", table, releaseSet),
		countQueued:       fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE status = ?", table),
		get:               fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", cols, table),
		isAuthorized:      fmt.Sprintf("SELECT authorized FROM %s WHERE token = ?", authTable),
	}
}
