package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type ValkeyClient struct {
	client   *redis.Client
	statsTTL time.Duration
}

type Config struct {
	Addr     string
	Password string
	StatsTTL time.Duration
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	if cfg.StatsTTL == 0 {
		cfg.StatsTTL = 30 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return &ValkeyClient{
		client:   rdb,
		statsTTL: cfg.StatsTTL,
	}, nil
}

func statsKey(eventID string) string {
	return "checkin:stats:" + eventID
}

// GetCheckinStatsRaw returns the cached stats payload as raw JSON so the
// handler can write it out without an unmarshal/marshal round trip.
func (v *ValkeyClient) GetCheckinStatsRaw(ctx context.Context, eventID string) ([]byte, error) {
	data, err := v.client.Get(ctx, statsKey(eventID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("stats not cached for event %s", eventID)
		}
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}
	return data, nil
}

func (v *ValkeyClient) SetCheckinStats(ctx context.Context, eventID string, stats any) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	return v.client.Set(ctx, statsKey(eventID), payload, v.statsTTL).Err()
}

// InvalidateCheckinStats drops the cached entry; called by the consumer on
// every redemption so the organizer dashboard never lags more than one scan.
func (v *ValkeyClient) InvalidateCheckinStats(ctx context.Context, eventID string) error {
	return v.client.Del(ctx, statsKey(eventID)).Err()
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}
