package redisbroker

import (
	"context"
	"testing"

	"github.com/ggoodman/dungeons-and-money/events"
	"github.com/ggoodman/dungeons-and-money/events/brokertest"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestRedisBroker(t *testing.T) {
	// Skip if Redis is not available
	testClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})
	if err := testClient.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	testClient.Close()

	factory := func(t *testing.T) events.Broker {
		client := redis.NewClient(&redis.Options{
			Addr: "localhost:6379",
		})
		prefix := "test:events:" + uuid.NewString() + ":"
		b, err := New(Config{
			Client:    client,
			KeyPrefix: prefix,
		})
		if err != nil {
			t.Fatalf("new broker: %v", err)
		}
		t.Cleanup(func() {
			_ = client.Del(context.Background(), prefix+"security").Err()
			_ = b.Close()
		})
		return b
	}

	brokertest.RunBrokerTests(t, factory)
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected an error without a client")
	}
}
