package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"finco/settlement/common"
	"finco/settlement/errors"

	"github.com/go-redis/redis/v8"
	redisgo "github.com/gomodule/redigo/redis"
	"github.com/nitishm/go-rejson/v4"
	log "github.com/sirupsen/logrus"
)

// Application Constants
const (
	RedisDbPrefix = "settlement:"
	// root path; "$" would wrap every read in an array
	RedisStoragePath = "."
)

// RedisClient connects to the redis database and returns the client and a
// json handler bound to it.
func RedisClient(ctx context.Context, cfg common.RedisConfigurations) (*redis.Client, *rejson.Handler, error) {
	if cfg.Host == "" || cfg.Port == "" {
		return nil, nil, errors.BuildErrMsg(errors.DBConfigurationError, fmt.Errorf("redis host and port are required"))
	}
	redisAddr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	op := &redis.Options{Addr: redisAddr, Password: cfg.Password, DB: cfg.DB, WriteTimeout: 5 * time.Second}
	redisClient := redis.NewClient(op)

	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, errors.BuildAndLogErrorMsg(errors.DBConnectionError, err)
	}
	redisJson := rejson.NewReJSONHandler()
	redisJson.SetGoRedisClient(redisClient)
	log.WithField("addr", redisAddr).Info("redis store connected")
	return redisClient, redisJson, nil
}

// RedisStore is a store.Store shared between instances. Expiry is left to
// redis key TTLs.
type RedisStore[T any] struct {
	client *redis.Client
	json   *rejson.Handler
	prefix string
}

func NewRedisStore[T any](client *redis.Client, handler *rejson.Handler, kind string) *RedisStore[T] {
	return &RedisStore[T]{client: client, json: handler, prefix: RedisDbPrefix + kind + ":"}
}

func (s *RedisStore[T]) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore[T]) Put(ctx context.Context, key string, value T, ttl time.Duration) error {
	if _, err := s.json.JSONSet(s.key(key), RedisStoragePath, value); err != nil {
		return errors.BuildErrMsg(errors.StoreWriteError, err)
	}
	if err := s.client.Expire(ctx, s.key(key), ttl).Err(); err != nil {
		s.client.Del(ctx, s.key(key))
		return errors.BuildErrMsg(errors.StoreWriteError, err)
	}
	return nil
}

func (s *RedisStore[T]) Get(_ context.Context, key string) (T, bool, error) {
	return s.read(key)
}

// Take reads the record and deletes it. Only the caller whose delete
// removed the key owns the record.
func (s *RedisStore[T]) Take(ctx context.Context, key string) (T, bool, error) {
	var zero T
	value, ok, err := s.read(key)
	if err != nil || !ok {
		return zero, ok, err
	}
	removed, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return zero, false, errors.BuildErrMsg(errors.StoreWriteError, err)
	}
	if removed == 0 {
		return zero, false, nil
	}
	return value, true, nil
}

func (s *RedisStore[T]) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return errors.BuildErrMsg(errors.StoreWriteError, err)
	}
	return nil
}

func (s *RedisStore[T]) read(key string) (T, bool, error) {
	var value T
	res, err := s.json.JSONGet(s.key(key), RedisStoragePath)
	raw, err := redisgo.Bytes(res, err)
	if errors.Is(err, redis.Nil) || errors.Is(err, redisgo.ErrNil) {
		return value, false, nil
	}
	if err != nil {
		return value, false, errors.BuildErrMsg(errors.StoreReadError, err)
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false, errors.BuildAndLogErrorMsgWithData(errors.UnmarshallError, err, s.key(key))
	}
	return value, true, nil
}
