package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dontdude/goconv/internal/domain"
)

// Key layout:
//
//	<prefix>:seq        INCR counter issuing artifact ids
//	<prefix>:<id>       hash {file_name, content}
//	<prefix>:index      set of every stored id
const (
	fieldFileName = "file_name"
	fieldContent  = "content"
)

// RedisStore implements domain.ArtifactStore on Redis hashes.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// Ensure RedisStore satisfies the interface
var _ domain.ArtifactStore = (*RedisStore)(nil)

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(addr, prefix string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	// Fail-fast ping check
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: rdb, prefix: prefix}, nil
}

func (r *RedisStore) key(parts ...string) string {
	return r.prefix + ":" + strings.Join(parts, ":")
}

// Close releases the connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// PersistArtifact allocates an id with INCR and writes the hash and index entry
// in one transaction.
func (r *RedisStore) PersistArtifact(ctx context.Context, data []byte, filename string) (domain.ArtifactID, error) {
	id, err := r.client.Incr(ctx, r.key("seq")).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: allocate id: %w", domain.ErrArtifactPersist, err)
	}

	idStr := strconv.FormatInt(id, 10)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.key(idStr), map[string]interface{}{
			fieldFileName: filename,
			fieldContent:  data,
		})
		pipe.SAdd(ctx, r.key("index"), idStr)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrArtifactPersist, err)
	}
	return domain.ArtifactID(id), nil
}

// Artifact loads one file by id.
func (r *RedisStore) Artifact(ctx context.Context, id domain.ArtifactID) (domain.Artifact, error) {
	idStr := strconv.FormatInt(int64(id), 10)
	vals, err := r.client.HMGet(ctx, r.key(idStr), fieldFileName, fieldContent).Result()
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("load artifact %d: %w", id, err)
	}

	name, ok := vals[0].(string)
	if !ok {
		return domain.Artifact{}, domain.ErrArtifactNotFound
	}
	content, _ := vals[1].(string)

	return domain.Artifact{ID: id, Filename: name, Content: []byte(content)}, nil
}

// Search scans the index and matches term against every file name, ignoring case.
func (r *RedisStore) Search(ctx context.Context, term string) ([]domain.ArtifactInfo, error) {
	ids, err := r.client.SMembers(ctx, r.key("index")).Result()
	if err != nil {
		return nil, fmt.Errorf("search artifacts: %w", err)
	}

	cmds := make([]*redis.StringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGet(ctx, r.key(id), fieldFileName)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("search artifacts: %w", err)
	}

	needle := strings.ToLower(term)
	results := []domain.ArtifactInfo{}
	for i, cmd := range cmds {
		name, err := cmd.Result()
		if err != nil {
			continue
		}
		if !strings.Contains(strings.ToLower(name), needle) {
			continue
		}
		id, err := strconv.ParseInt(ids[i], 10, 64)
		if err != nil {
			continue
		}
		results = append(results, domain.ArtifactInfo{ID: domain.ArtifactID(id), Filename: name})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}
