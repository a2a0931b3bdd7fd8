package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if this instance still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// JobLock implements ports.JobLock with SET NX and an owner token.
type JobLock struct {
	client goredis.UniversalClient
	prefix string
	owner  string
}

// NewJobLock creates a lock whose owner token is unique to this process.
func NewJobLock(client goredis.UniversalClient) *JobLock {
	return &JobLock{
		client: client,
		prefix: "ledger:lock:",
		owner:  uuid.NewString(),
	}
}

// Acquire takes the named lock for ttl. It returns false if another
// owner holds it.
func (l *JobLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	_, err := l.client.SetArgs(ctx, l.prefix+name, l.owner, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis lock acquire: %w", err)
	}
	return true, nil
}

// Release drops the named lock if this instance owns it.
func (l *JobLock) Release(ctx context.Context, name string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + name}, l.owner).Err(); err != nil {
		return fmt.Errorf("redis lock release: %w", err)
	}
	return nil
}
