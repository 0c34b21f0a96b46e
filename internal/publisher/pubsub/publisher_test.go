package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newFakeServer(t *testing.T) (*pstest.Server, []option.ClientOption) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return srv, []option.ClientOption{option.WithGRPCConn(conn)}
}

func TestPublishSendsJSON(t *testing.T) {
	ctx := context.Background()
	srv, opts := newFakeServer(t)

	client, err := pubsub.NewClient(ctx, "project-id", opts...)
	require.NoError(t, err)
	defer client.Close() //nolint:errcheck
	_, err = client.CreateTopic(ctx, "canonical-runs")
	require.NoError(t, err)

	pub := New(client, "canonical-runs")
	defer pub.Close() //nolint:errcheck

	id, err := pub.Publish(ctx, "", map[string]any{"run_id": "run-1", "total_mismatches": 3})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "application/json", msgs[0].Attributes["content_type"])
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
}

func TestDialChecksTopic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, opts := newFakeServer(t)

	_, err := Dial(ctx, Config{ProjectID: "project-id", Topic: "missing"}, opts...)
	require.Error(t, err)

	_, err = Dial(ctx, Config{})
	require.Error(t, err)
}

func TestDialAndPublish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv, opts := newFakeServer(t)

	admin, err := pubsub.NewClient(ctx, "project-id", opts...)
	require.NoError(t, err)
	_, err = admin.CreateTopic(ctx, "canonical-runs")
	require.NoError(t, err)

	pub, err := Dial(ctx, Config{ProjectID: "project-id", Topic: "canonical-runs"}, opts...)
	require.NoError(t, err)

	_, err = pub.Publish(ctx, "canonical-runs", "payload")
	require.NoError(t, err)
	require.NoError(t, pub.Close())
	assert.Len(t, srv.Messages(), 1)
}

func TestPublishWithoutClient(t *testing.T) {
	t.Parallel()

	_, err := (&Publisher{}).Publish(context.Background(), "t", "x")
	require.Error(t, err)
}
