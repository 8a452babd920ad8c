package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, cleanup
}

func TestPublishProgress_AutoFill(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *ProgressMessage, 1)
	sub := NewSubscriber(client)
	go sub.Subscribe(ctx, func(msg *ProgressMessage) {
		received <- msg
	})

	// 等订阅建立
	time.Sleep(100 * time.Millisecond)

	pub := NewPublisher(client)
	err := pub.PublishProgress(ctx, &ProgressMessage{
		JobID:  1,
		Status: "testing",
		Stage:  StageTesting,
	})
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, "job_progress", msg.Type)
		assert.Equal(t, int64(1), msg.JobID)
		// 进度和消息按阶段自动填充
		assert.Equal(t, StageProgress[StageTesting], msg.Progress)
		assert.Equal(t, StageMessages[StageTesting], msg.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("progress message not received")
	}
}

func TestPublishControl_RoundTrip(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *ControlMessage, 1)
	sub := NewSubscriber(client)
	go sub.SubscribeControl(ctx, func(msg *ControlMessage) {
		received <- msg
	})

	time.Sleep(100 * time.Millisecond)

	pub := NewPublisher(client)
	require.NoError(t, pub.PublishControl(ctx, &ControlMessage{JobID: 5, Action: ControlCancel}))

	select {
	case msg := <-received:
		assert.Equal(t, int64(5), msg.JobID)
		assert.Equal(t, ControlCancel, msg.Action)
	case <-time.After(2 * time.Second):
		t.Fatal("control message not received")
	}
}

func TestStageProgress_Monotonic(t *testing.T) {
	order := []string{
		StageResearching, StageGenerating, StageTesting, StageFixing,
		StageVerifying, StageDeploying, StageVerifyingDeploy, StageDone,
	}

	prev := -1
	for _, s := range order {
		p, ok := StageProgress[s]
		require.True(t, ok, "missing progress for %s", s)
		assert.Greater(t, p, prev, "progress should grow at %s", s)
		prev = p
	}
	assert.Equal(t, 100, StageProgress[StageDone])
}
