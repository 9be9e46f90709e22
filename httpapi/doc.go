// Package httpapi exposes the relay over HTTP and provides a Client for remote workers.
//
// @title smsqueue relay API
// @version 1.0
// @description Authorized SMS submission and worker claim/report endpoints.
// @BasePath /
package httpapi
