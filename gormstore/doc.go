// Package gormstore provides a PostgreSQL smsqueue store built on GORM.
//
// Claims run in a transaction that selects the oldest queued row with
// clause.Locking{Strength: UPDATE, Options: SKIP LOCKED} and then updates it.
// Migrate creates the tables through AutoMigrate.
package gormstore
