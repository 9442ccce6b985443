package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
)

func newFakePubSub(t *testing.T) (*pstest.Server, *pubsub.Client) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	client, err := pubsub.NewClient(context.Background(), "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	return srv, client
}

func TestDistributionPublisher_CreatesTopicAndPublishes(t *testing.T) {
	srv, client := newFakePubSub(t)
	pub := NewDistributionPublisher(client, "distribution-events")
	defer pub.Close()

	externalID := "1500"
	evt := model.DistributionEvent{Type: "distribution_status", CreatorID: "creator-1", Platform: "twitter", Status: "success", ExternalID: &externalID}
	require.NoError(t, pub.Publish(context.Background(), evt))
	require.NoError(t, pub.Publish(context.Background(), evt))

	msgs := srv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "twitter", msgs[0].Attributes["platform"])
	assert.Equal(t, "success", msgs[0].Attributes["status"])

	var got model.DistributionEvent
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, evt, got)
}

func TestNewDistributionPublisher_NoClient(t *testing.T) {
	pub := NewDistributionPublisher(nil, "distribution-events")
	assert.IsType(t, NoopPublisher{}, pub)
	assert.NoError(t, pub.Publish(context.Background(), model.DistributionEvent{}))
	assert.NoError(t, pub.Close())
}
