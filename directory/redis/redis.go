package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/lucas-luzj/magic-crm/core"
	"github.com/lucas-luzj/magic-crm/directory"
)

type RedisDirectoryOption func(*redisDirectory)

// WithKeyPrefix sets a prefix for all keys used by the directory.
func WithKeyPrefix(prefix string) RedisDirectoryOption {
	return func(d *redisDirectory) {
		d.keyPrefix = prefix
	}
}

type redisDirectory struct {
	rdb       redis.UniversalClient
	keyPrefix string
}

var _ directory.Directory = (*redisDirectory)(nil)

// NewRedisDirectory returns a Directory backed by Redis. Group records are
// stored as hashes, memberships as sets with a reverse index per group.
func NewRedisDirectory(client redis.UniversalClient, opts ...RedisDirectoryOption) *redisDirectory {
	d := &redisDirectory{
		rdb:       client,
		keyPrefix: "crm:",
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *redisDirectory) EnsurePrincipal(ctx context.Context, id string, attrs directory.Attributes) error {
	fields := map[string]interface{}{"id": id}
	for k, v := range attrs {
		fields[k] = v
	}

	if err := d.rdb.HSet(ctx, principalKey(d.keyPrefix, id), fields).Err(); err != nil {
		return fmt.Errorf("storing principal: %w", err)
	}

	return nil
}

func (d *redisDirectory) DeletePrincipal(ctx context.Context, id string) error {
	groups, err := d.rdb.SMembers(ctx, membershipsKey(d.keyPrefix, id)).Result()
	if err != nil {
		return fmt.Errorf("reading memberships: %w", err)
	}

	p := d.rdb.TxPipeline()

	for _, key := range groups {
		p.SRem(ctx, groupMembersKey(d.keyPrefix, key), id)
	}

	p.Del(ctx, membershipsKey(d.keyPrefix, id))
	p.Del(ctx, principalKey(d.keyPrefix, id))

	if _, err := p.Exec(ctx); err != nil {
		return fmt.Errorf("deleting principal: %w", err)
	}

	return nil
}

func (d *redisDirectory) EnsureGroup(ctx context.Context, key string, kind core.GroupKind, displayName string) error {
	created, err := d.rdb.HSetNX(ctx, groupRecordKey(d.keyPrefix, key), "kind", string(kind)).Result()
	if err != nil {
		return fmt.Errorf("storing group: %w", err)
	}

	if created {
		if err := d.rdb.HSet(ctx, groupRecordKey(d.keyPrefix, key), "display_name", displayName).Err(); err != nil {
			return fmt.Errorf("storing group name: %w", err)
		}
	}

	return nil
}

func (d *redisDirectory) SetMembership(ctx context.Context, principalID, key string) error {
	exists, err := d.rdb.Exists(ctx, groupRecordKey(d.keyPrefix, key)).Result()
	if err != nil {
		return fmt.Errorf("checking group: %w", err)
	}

	if exists == 0 {
		return core.ErrGroupNotFound
	}

	p := d.rdb.TxPipeline()
	p.SAdd(ctx, membershipsKey(d.keyPrefix, principalID), key)
	p.SAdd(ctx, groupMembersKey(d.keyPrefix, key), principalID)

	if _, err := p.Exec(ctx); err != nil {
		return fmt.Errorf("adding membership: %w", err)
	}

	return nil
}

func (d *redisDirectory) ClearMembership(ctx context.Context, principalID, key string) error {
	p := d.rdb.TxPipeline()
	p.SRem(ctx, membershipsKey(d.keyPrefix, principalID), key)
	p.SRem(ctx, groupMembersKey(d.keyPrefix, key), principalID)

	if _, err := p.Exec(ctx); err != nil {
		return fmt.Errorf("removing membership: %w", err)
	}

	return nil
}

func (d *redisDirectory) ListMemberships(ctx context.Context, principalID string, kind core.GroupKind) (map[string]struct{}, error) {
	groups, err := d.rdb.SMembers(ctx, membershipsKey(d.keyPrefix, principalID)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading memberships: %w", err)
	}

	p := d.rdb.Pipeline()

	kinds := make([]*redis.StringCmd, len(groups))
	for i, key := range groups {
		kinds[i] = p.HGet(ctx, groupRecordKey(d.keyPrefix, key), "kind")
	}

	if _, err := p.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("reading group kinds: %w", err)
	}

	keys := map[string]struct{}{}

	for i, key := range groups {
		k, err := kinds[i].Result()
		if err == redis.Nil {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("reading group kind: %w", err)
		}

		if core.GroupKind(k) == kind {
			keys[key] = struct{}{}
		}
	}

	return keys, nil
}
