// Package postgres provides a PostgreSQL smsqueue store on top of pgx.
//
// A claim is a single statement: an UPDATE whose target is picked by a
// SELECT ... ORDER BY created_at, id LIMIT 1 FOR UPDATE SKIP LOCKED subquery, so
// concurrent claimers never wait on each other's row locks. Reports are conditional
// UPDATEs on status and claim token.
package postgres
