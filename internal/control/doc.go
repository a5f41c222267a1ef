// Package control serves the supervisor's caller interface over a unix
// socket as HTTP/JSON, and provides the matching client used by the CLI.
//
// Routes:
//
//	GET  /v1/services                  status of every service
//	GET  /v1/services/{name}           status of one service
//	POST /v1/services/{name}/start
//	POST /v1/services/{name}/stop
//	POST /v1/services/{name}/restart
//	GET  /v1/definitions               known definitions
//	POST /v1/reload                    re-read definitions
//	POST /v1/dump                      log and persist all snapshots
//	GET  /v1/processes/{pid}           live statistics of a process
//	GET  /metrics                      Prometheus metrics
//
// Errors are returned as ErrorResponse. NotFound maps to 404,
// AlreadyRunning to 409 and a supervisor that is shutting down to 503; the
// client turns these back into the api error types.
package control
