package syncproto

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

type fakeServer struct {
	SyncServiceServer

	lastPush *PushRequest
	lastPull *PullRequest
}

func (f *fakeServer) Ping(ctx context.Context, in *PingRequest) (*PingResponse, error) {
	return &PingResponse{ServerTime: time.Unix(100, 0)}, nil
}

func (f *fakeServer) Push(ctx context.Context, in *PushRequest) (*PushResponse, error) {
	f.lastPush = in
	v := in.Entities[0].Version + 1
	return &PushResponse{
		Results: []PushResult{{EntityID: in.Entities[0].EntityID, Status: StatusUpdated, ServerVersion: v}},
		Errors:  []PushError{{EntityID: "dup", Code: "id_collision", SuggestedEntityID: "new"}},
	}, nil
}

func (f *fakeServer) Pull(ctx context.Context, in *PullRequest) (*PullResponse, error) {
	f.lastPull = in
	return &PullResponse{
		Entities:         []PullEntity{{EntityID: "a", Data: json.RawMessage(`{"name":"x"}`), Version: 3}},
		DeletedEntityIDs: []string{"b"},
		Checkpoint:       Checkpoint{LastPulledVersion: 3},
		ServerTimestamp:  time.Unix(200, 0),
	}, nil
}

func startServer(t *testing.T, srv SyncServiceServer, opts ...grpc.ServerOption) SyncServiceClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(opts...)
	RegisterSyncServiceServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewSyncServiceClient(conn)
}

func TestSyncService_PushRoundTrip(t *testing.T) {
	fs := &fakeServer{}
	c := startServer(t, fs)

	now := time.Now().UTC().Truncate(time.Millisecond)
	resp, err := c.Push(context.Background(), &PushRequest{
		EntityType: "category",
		Entities: []PushEntity{{
			EntityID: "e1", HomeID: "h1", Data: json.RawMessage(`{"name":"tools"}`),
			Version: 4, ClientUpdatedAt: now, PendingUpdate: true,
		}},
		Checkpoint: Checkpoint{LastPulledVersion: 9},
	})
	require.NoError(t, err)

	require.NotNil(t, fs.lastPush)
	got := fs.lastPush.Entities[0]
	assert.Equal(t, "h1", got.HomeID)
	assert.JSONEq(t, `{"name":"tools"}`, string(got.Data))
	assert.True(t, got.PendingUpdate)
	assert.False(t, got.PendingCreate)
	assert.True(t, now.Equal(got.ClientUpdatedAt))
	assert.Equal(t, int64(9), fs.lastPush.Checkpoint.LastPulledVersion)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, StatusUpdated, resp.Results[0].Status)
	assert.Equal(t, int64(5), resp.Results[0].ServerVersion)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "new", resp.Errors[0].SuggestedEntityID)
}

func TestSyncService_PullRoundTrip(t *testing.T) {
	fs := &fakeServer{}
	c := startServer(t, fs)

	resp, err := c.Pull(context.Background(), &PullRequest{EntityType: "item", HomeID: "h1", IncludeDeleted: true})
	require.NoError(t, err)

	assert.Equal(t, "h1", fs.lastPull.HomeID)
	assert.True(t, fs.lastPull.IncludeDeleted)
	assert.Nil(t, fs.lastPull.Since)

	require.Len(t, resp.Entities, 1)
	assert.Equal(t, []string{"b"}, resp.DeletedEntityIDs)
	assert.Equal(t, int64(3), resp.Checkpoint.LastPulledVersion)
	assert.True(t, time.Unix(200, 0).Equal(resp.ServerTimestamp))
}

func TestSyncService_InterceptorSeesFullMethod(t *testing.T) {
	var seen []string
	interceptor := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		seen = append(seen, info.FullMethod)
		return handler(ctx, req)
	}
	c := startServer(t, &fakeServer{}, grpc.UnaryInterceptor(interceptor))

	_, err := c.Ping(context.Background(), &PingRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{PingMethod}, seen)
}

func TestCodec_Name(t *testing.T) {
	assert.Equal(t, "msgpack", Codec{}.Name())
}

func TestCodec_UnmarshalGarbage(t *testing.T) {
	var out PushResponse
	require.Error(t, Codec{}.Unmarshal([]byte{0xc1}, &out))
}
