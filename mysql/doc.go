// Package mysql provides a MySQL 8.0+ smsqueue store.
//
// Claims use:
//   - READ COMMITTED isolation (to avoid gap locks)
//   - SELECT ... FOR UPDATE SKIP LOCKED
//   - ORDER BY created_at, id for FIFO hand-out
//   - LIMIT 1 so each claim hands out a single message
//
// Reports lock the message row with SELECT ... FOR UPDATE before checking its status and
// claim token. See Schema and AuthorizationSchema for the DDL, and CleanupMaintainer for
// periodic removal of delivered and dead messages.
package mysql
