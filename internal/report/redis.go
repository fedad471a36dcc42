package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zsiec/ltcsplit/internal/config"
	"github.com/zsiec/ltcsplit/internal/pipeline"
)

// Publisher writes run summaries and cut lists to Redis.
//
// Keys, relative to the configured prefix:
//
//	run:<id>       hash of run fields
//	run:<id>:cuts  list of cut JSON documents
//	runs           sorted set of run IDs scored by completion time; entries
//	               older than the TTL are pruned on publish
type Publisher struct {
	client *redis.Client
	cfg    config.RedisConfig
	owned  bool
}

// NewPublisher connects to the configured Redis server.
func NewPublisher(cfg config.RedisConfig) *Publisher {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	p := NewPublisherWithClient(client, cfg)
	p.owned = true
	return p
}

// NewPublisherWithClient publishes through an existing client, which the
// caller keeps ownership of.
func NewPublisherWithClient(client *redis.Client, cfg config.RedisConfig) *Publisher {
	return &Publisher{client: client, cfg: cfg}
}

// Check verifies the server answers.
func (p *Publisher) Check(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	info, err := p.client.Info(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to get redis info: %w", err)
	}
	if len(info) == 0 {
		return fmt.Errorf("empty redis info response")
	}
	return nil
}

func (p *Publisher) runKey(id string) string {
	return p.cfg.KeyPrefix + "run:" + id
}

func (p *Publisher) cutsKey(id string) string {
	return p.runKey(id) + ":cuts"
}

func (p *Publisher) indexKey() string {
	return p.cfg.KeyPrefix + "runs"
}

// Publish stores res atomically. Earlier cuts for the same run are replaced.
func (p *Publisher) Publish(ctx context.Context, res *pipeline.Result) error {
	cuts := make([]interface{}, 0, len(res.Cuts))
	for _, c := range res.Cuts {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encoding cut: %w", err)
		}
		cuts = append(cuts, string(data))
	}

	runKey, cutsKey := p.runKey(res.RunID), p.cutsKey(res.RunID)
	now := time.Now()
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, runKey, map[string]interface{}{
			"input":            res.Input,
			"frame_rate":       res.FrameRate.String(),
			"rate_source":      string(res.RateSource),
			"frame_duration":   res.FrameDuration,
			"video_frames":     res.VideoFrames,
			"ambiguous_frames": res.AmbiguousFrames,
			"ltc_frames":       res.LTCFrames,
			"cuts":             len(res.Cuts),
			"elapsed_ms":       res.Elapsed.Milliseconds(),
		})
		pipe.Del(ctx, cutsKey)
		if len(cuts) > 0 {
			pipe.RPush(ctx, cutsKey, cuts...)
		}
		if p.cfg.TTL > 0 {
			pipe.Expire(ctx, runKey, p.cfg.TTL)
			pipe.Expire(ctx, cutsKey, p.cfg.TTL)
		}
		if p.cfg.TTL > 0 {
			cutoff := now.Add(-p.cfg.TTL).Unix()
			pipe.ZRemRangeByScore(ctx, p.indexKey(), "-inf", "("+strconv.FormatInt(cutoff, 10))
		}
		pipe.ZAdd(ctx, p.indexKey(), redis.Z{
			Score:  float64(now.Unix()),
			Member: res.RunID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("publishing run %s: %w", res.RunID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if !p.owned {
		return nil
	}
	return p.client.Close()
}
