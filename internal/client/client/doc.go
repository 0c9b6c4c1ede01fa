// Package client talks to the homekeeper sync server.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface):
//     Register/Login, Ping, and the Push/Pull halves of a sync cycle.
//  2. A concrete gRPC implementation (see GRPCClient) that manages a
//     connection, injects an access token via an interceptor, transparently
//     refreshes expired tokens, and maps gRPC status codes to sentinel errors.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrAlreadyExists, ErrNotLoggedIn.
//
// Concurrency & Contexts
//
// GRPCClient is safe for concurrent use; sync cycles of different entity
// kinds share one client. All operations honor context cancellation.
package client
