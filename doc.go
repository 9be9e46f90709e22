// Package smsqueue provides the queue core of an outbound message relay with pluggable storage backends.
//
// Typical flow:
//  1. A submitter calls Service.Submit; the Authorizer is consulted and the message is enqueued as queued.
//  2. Worker agents (phones, gateways) call Service.Claim; the store hands out the oldest queued message
//     to exactly one caller and moves it to processing.
//  3. The agent reports the outcome with Service.Report; sent is terminal, failed returns the message to
//     the queue at its original position, or dead-letters it once the attempt limit is reached.
//
// A LeaseSweeper returns abandoned claims to the queue, and Worker implements the agent side of the
// protocol. See the memory, mysql, postgres and gormstore packages for Store implementations and
// httpapi for the HTTP transport and its worker client.
package smsqueue
