// Package memory provides an in-process smsqueue store for embedding, local runs and tests.
//
// Claims use a compare-and-swap on each record's status while walking records in
// (created_at, id) order, so concurrent claimers never block one another: a claimer that
// loses the swap moves on to the next-oldest record. Nothing survives a restart.
package memory
