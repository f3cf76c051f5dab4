package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"

	"cardforge/internal/audit"
	authservice "cardforge/internal/auth/service"
	"cardforge/internal/auth/store/session"
	"cardforge/internal/auth/store/user"
	cardservice "cardforge/internal/card/service"
	cardstore "cardforge/internal/card/store"
	"cardforge/internal/platform/config"
	"cardforge/internal/platform/httpserver"
	"cardforge/internal/platform/kafka"
	"cardforge/internal/platform/postgres"
	platformredis "cardforge/internal/platform/redis"
	rateservice "cardforge/internal/ratelimit/service"
	"cardforge/internal/ratelimit/store/window"
)

// infra holds the external connections. Each is nil when its URL is unset.
type infra struct {
	db    *sql.DB
	redis *redis.Client
	kafka *kgo.Client
}

func openInfra(ctx context.Context, cfg *config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{}

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database.URL, postgres.Options{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		in.db = db
		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db, log); err != nil {
				in.Close()
				return nil, err
			}
		}
	} else {
		log.Warn("DATABASE_URL not set, cards and users are kept in memory")
	}

	if cfg.Redis.URL != "" {
		client, err := platformredis.Open(ctx, cfg.Redis.URL, platformredis.Options{
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			in.Close()
			return nil, err
		}
		in.redis = client
	} else {
		log.Warn("REDIS_URL not set, sessions and rate limits are kept in memory")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		client, err := kafka.Open(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			in.Close()
			return nil, err
		}
		in.kafka = client
		created, err := kafka.EnsureTopic(ctx, client, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor)
		if err != nil {
			in.Close()
			return nil, err
		}
		if created {
			log.Info("created audit topic", "topic", cfg.Kafka.Topic, "partitions", cfg.Kafka.Partitions)
		}
	}
	return in, nil
}

func (in *infra) Close() {
	if in.kafka != nil {
		in.kafka.Close()
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.db != nil {
		_ = in.db.Close()
	}
}

func (in *infra) healthChecks() map[string]httpserver.Check {
	checks := map[string]httpserver.Check{}
	if in.db != nil {
		checks["postgres"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return in.redis.Ping(ctx).Err() }
	}
	if in.kafka != nil {
		checks["kafka"] = in.kafka.Ping
	}
	return checks
}

type stores struct {
	cards       cardservice.Store
	users       authservice.UserStore
	sessions    authservice.SessionStore
	rateWindows rateservice.Store
	rateOptions []rateservice.Option
}

func newStores(in *infra) *stores {
	s := &stores{}
	if in.db != nil {
		s.cards = cardstore.NewPostgres(in.db)
		s.users = user.NewPostgres(in.db)
	} else {
		s.cards = cardstore.NewInMemory()
		s.users = user.New()
	}
	if in.redis != nil {
		s.sessions = session.NewRedis(in.redis)
		s.rateWindows = window.NewRedis(in.redis)
		s.rateOptions = []rateservice.Option{rateservice.WithFallback(window.New())}
	} else {
		s.sessions = session.New()
		s.rateWindows = window.New()
	}
	return s
}

func auditSink(cfg *config.Config, in *infra, log *slog.Logger) audit.Sink {
	if in.kafka != nil {
		log.Info("audit events go to kafka", "topic", cfg.Kafka.Topic)
		return audit.NewKafkaSink(in.kafka, cfg.Kafka.Topic)
	}
	return audit.NewLogSink(log)
}
