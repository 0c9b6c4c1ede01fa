// Package syncproto defines the wire contract between the homekeeper client
// and server.
//
// # Overview
//
// Messages are plain Go structs encoded with MessagePack (see Codec) and
// carried over gRPC. The service descriptor in service.go is written by hand
// in the shape protoc-gen-go-grpc would generate, so both sides use the
// regular grpc.ClientConn / grpc.Server machinery.
//
// # Sync messages
//
// A push carries every pending record of one entity type and home:
//
//	{ entityType, entities: [{ entityId, homeId, data, version, clientUpdatedAt,
//	                          pendingCreate, pendingUpdate, pendingDelete }],
//	  lastPulledAt, checkpoint: { lastPulledVersion } }
//
// and the server answers per entity with one of created, updated, deleted or
// server_version, plus a list of per-entity errors such as id_collision.
//
// A pull asks for everything above a version checkpoint and returns live
// entities, the ids deleted since the checkpoint, the new checkpoint and the
// server clock.
package syncproto
