package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchsync/internal/repository/definition"
)

const (
	keyPrefix = "room:"
	keySuffix = ":definition"
)

type repo struct {
	rc     *redis.Client
	logger *slog.Logger
}

func NewRepo(rc *redis.Client, logger *slog.Logger) *repo {
	return &repo{
		rc:     rc,
		logger: logger,
	}
}

func (r repo) getDefinitionKey(name string) string {
	return keyPrefix + name + keySuffix
}

func (r repo) Set(ctx context.Context, name string, def definition.Definition) error {
	funcName := "definition.redis.Set"
	r.logger.DebugContext(ctx, funcName, "room", name)

	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal room definition: %w", err)
	}

	if err := r.rc.Set(ctx, r.getDefinitionKey(name), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set room definition: %w", err)
	}

	return nil
}

func (r repo) Get(ctx context.Context, name string) (definition.Definition, error) {
	funcName := "definition.redis.Get"
	r.logger.DebugContext(ctx, funcName, "room", name)

	data, err := r.rc.Get(ctx, r.getDefinitionKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return definition.Definition{}, definition.ErrDefinitionNotFound
		}

		return definition.Definition{}, fmt.Errorf("failed to get room definition: %w", err)
	}

	var def definition.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return definition.Definition{}, fmt.Errorf("failed to unmarshal room definition: %w", err)
	}

	return def, nil
}

func (r repo) List(ctx context.Context) ([]string, error) {
	funcName := "definition.redis.List"
	r.logger.DebugContext(ctx, funcName)

	var names []string
	iter := r.rc.Scan(ctx, 0, keyPrefix+"*"+keySuffix, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		names = append(names, strings.TrimSuffix(strings.TrimPrefix(key, keyPrefix), keySuffix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list room definitions: %w", err)
	}

	slices.Sort(names)

	return names, nil
}
