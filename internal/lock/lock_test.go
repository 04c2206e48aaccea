package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Reel/internal/telemetry"
)

// fakeRedis — Redis в памяти: SET NX и два скрипта лока.
type fakeRedis struct {
	mu      sync.Mutex
	keys    map[string]string
	extends int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: make(map[string]string)}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) EvalSha(_ context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	key, token := keys[0], args[0].(string)
	if f.keys[key] != token {
		return redis.NewCmdResult(int64(0), nil)
	}

	switch sha1 {
	case releaseScript.Hash():
		delete(f.keys, key)
	case extendScript.Hash():
		f.extends++
	default:
		return redis.NewCmdResult(nil, errors.New("NOSCRIPT unknown script"))
	}
	return redis.NewCmdResult(int64(1), nil)
}

func (f *fakeRedis) Eval(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("eval not supported"))
}

func (f *fakeRedis) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return f.Eval(ctx, script, keys, args...)
}

func (f *fakeRedis) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	return f.EvalSha(ctx, sha1, keys, args...)
}

func (f *fakeRedis) ScriptExists(context.Context, ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(nil, nil)
}

func (f *fakeRedis) ScriptLoad(context.Context, string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func (f *fakeRedis) holder(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[key]
}

func TestLockJob_Exclusive(t *testing.T) {
	client := newFakeRedis()
	l := NewRedis(client, Config{Logger: telemetry.Discard()})
	jobID := uuid.New()

	release, err := l.LockJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("first LockJob: %v", err)
	}

	if _, err := l.LockJob(context.Background(), jobID); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	release()
	release() // идемпотентно

	if client.holder(defaultPrefix+jobID.String()) != "" {
		t.Fatal("key should be deleted on release")
	}

	release, err = l.LockJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("LockJob after release: %v", err)
	}
	release()
}

func TestRelease_KeepsForeignKey(t *testing.T) {
	client := newFakeRedis()
	l := NewRedis(client, Config{Logger: telemetry.Discard()})
	key := "reel:test"

	release, err := l.Acquire(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}

	// Ключ истёк и его забрал другой владелец
	client.mu.Lock()
	client.keys[key] = "someone-else"
	client.mu.Unlock()

	release()

	if client.holder(key) != "someone-else" {
		t.Error("release must not delete a key owned by someone else")
	}
}

func TestRefresh_ExtendsWhileHeld(t *testing.T) {
	client := newFakeRedis()
	l := NewRedis(client, Config{TTL: 30 * time.Millisecond, Logger: telemetry.Discard()})

	release, err := l.Acquire(context.Background(), "reel:refresh")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	release()

	client.mu.Lock()
	extends := client.extends
	client.mu.Unlock()
	if extends == 0 {
		t.Error("lock should be extended while held")
	}
}
