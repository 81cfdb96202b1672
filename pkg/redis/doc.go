// Package redis connects to a Redis server for the components that share
// state across processes, such as the distributed quota ledger. Connect
// retries until the server is reachable or the attempts are exhausted, and
// Healthcheck adapts the client to the standard probe signature.
package redis
