// Package common contains constants and sentinel errors shared by the
// homekeeper client and server.
package common

const (
	// AccessTokenHeaderName is the gRPC metadata key carrying the access token.
	AccessTokenHeaderName = "access_token"

	// ErrCodeIDCollision is reported in a push response when an entity id is
	// already taken by another record on the server.
	ErrCodeIDCollision = "id_collision"

	// ErrCodeInvalidEntity is reported for entities the server cannot accept.
	ErrCodeInvalidEntity = "invalid_entity"
)
