package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/anacrolix/sqlreplay/fingerprint"
)

// RedisOptions configures a Redis backend created by NewRedis.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Redis keeps one hash per fingerprint hash bucket, with a field per exact
// fingerprint key. HSETNX gives first-recorder-wins atomically across
// processes sharing the server.
type Redis struct {
	client            redis.UniversalClient
	prefix            string
	createdInternally bool
}

var _ Backend = (*Redis)(nil)

const defaultKeyPrefix = "sqlreplay:"

// NewRedis uses client directly if it is not nil. Otherwise it connects with
// opts and pings the server.
func NewRedis(client redis.UniversalClient, opts RedisOptions) (*Redis, error) {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if client != nil {
		return &Redis{client: client, prefix: prefix}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	log.Infof("redis cache at %s", opts.Addr)
	return &Redis{client: rdb, prefix: prefix, createdInternally: true}, nil
}

// Close closes the client only if NewRedis created it.
func (me *Redis) Close() error {
	if me.createdInternally {
		return me.client.Close()
	}
	return nil
}

func (me *Redis) bucket(kind Kind, fp fingerprint.Fingerprint) string {
	return me.prefix + bucketName(kind, fp)
}

func (me *Redis) Put(ctx context.Context, kind Kind, fp fingerprint.Fingerprint, value []byte) (stored bool, err error) {
	stored, err = me.client.HSetNX(ctx, me.bucket(kind, fp), fp.Key(), value).Result()
	if err != nil {
		err = errors.Wrapf(err, "redis HSETNX %s", me.bucket(kind, fp))
	}
	return
}

func (me *Redis) Get(ctx context.Context, kind Kind, fp fingerprint.Fingerprint) (value []byte, ok bool, err error) {
	value, err = me.client.HGet(ctx, me.bucket(kind, fp), fp.Key()).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "redis HGET %s", me.bucket(kind, fp))
	}
	ok = true
	return
}
