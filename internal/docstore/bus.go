package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/arnold/habitgrid-api/internal/logger"
)

// Change announces that the document at Path was written by Origin.
type Change struct {
	Origin string `json:"origin"`
	Path   string `json:"path"`
}

// Bus carries document changes between server instances.
type Bus interface {
	Publish(ctx context.Context, c Change) error
	StartForwarder(ctx context.Context, onChange func(c Change)) error
	Close() error
}

type redisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewRedisBus(log *logger.Logger, addr, channel string) (Bus, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if channel = strings.TrimSpace(channel); channel == "" {
		channel = "docstore"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisBus{
		log:     logger.OrNop(log).With("service", "RedisDocBus"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, c Change) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onChange func(c Change)) error {
	if onChange == nil {
		return fmt.Errorf("onChange callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(m.Payload), &c); err != nil {
					b.log.Warn("bad change payload", "error", err)
					continue
				}
				onChange(c)
			}
		}
	}()

	return nil
}

func (b *redisBus) Close() error {
	return b.rdb.Close()
}
