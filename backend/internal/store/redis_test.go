package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

var errInjected = errors.New("injected redis failure")

type fakeEntry struct {
	value   string
	fields  map[string]string
	expires time.Time
}

// fakeRedis answers the commands Cached issues from memory. It is installed as a client hook so no
// connection is ever dialed.
type fakeRedis struct {
	mu      sync.Mutex
	now     time.Time
	entries map[string]*fakeEntry
	failing map[string]bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		now:     time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
		entries: make(map[string]*fakeEntry),
		failing: make(map[string]bool),
	}
}

// client returns a new client backed by f. Clients of the same fake share its data.
func (f *fakeRedis) client(t *testing.T) *redis.Client {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{Addr: "fake-redis:6379"})
	rdb.AddHook(f)

	return rdb
}

// fail makes the named commands (e.g. "set", "hset") return an error until heal is called.
func (f *fakeRedis) fail(cmds ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range cmds {
		f.failing[c] = true
	}
}

func (f *fakeRedis) heal() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failing = make(map[string]bool)
}

func (f *fakeRedis) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)
}

func (f *fakeRedis) DialHook(redis.DialHook) redis.DialHook {
	return func(context.Context, string, string) (net.Conn, error) {
		return nil, fmt.Errorf("fake redis does not dial")
	}
}

func (f *fakeRedis) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		f.mu.Lock()
		defer f.mu.Unlock()

		return f.exec(cmd)
	}
}

func (f *fakeRedis) ProcessPipelineHook(redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(_ context.Context, cmds []redis.Cmder) error {
		f.mu.Lock()
		defer f.mu.Unlock()

		// MULTI/EXEC is all or nothing
		for _, cmd := range cmds {
			if f.failing[cmd.Name()] {
				for _, c := range cmds {
					c.SetErr(errInjected)
				}

				return errInjected
			}
		}

		for _, cmd := range cmds {
			if name := cmd.Name(); name == "multi" || name == "exec" {
				continue
			}

			if err := f.exec(cmd); err != nil {
				cmd.SetErr(err)
				return err
			}
		}

		return nil
	}
}

func (f *fakeRedis) lookup(key string) *fakeEntry {
	e, ok := f.entries[key]
	if !ok {
		return nil
	}

	if !e.expires.IsZero() && !f.now.Before(e.expires) {
		delete(f.entries, key)
		return nil
	}

	return e
}

func (f *fakeRedis) exec(cmd redis.Cmder) error {
	name := cmd.Name()
	if f.failing[name] {
		return errInjected
	}

	args := cmd.Args()
	key := argString(args[1])

	switch name {
	case "get":
		e := f.lookup(key)
		if e == nil || e.fields != nil {
			return redis.Nil
		}

		cmd.(*redis.StringCmd).SetVal(e.value)
	case "set":
		e := &fakeEntry{value: argString(args[2])}

		for i := 3; i+1 < len(args); i += 2 {
			n, _ := strconv.ParseInt(argString(args[i+1]), 10, 64)

			switch strings.ToLower(argString(args[i])) {
			case "ex":
				e.expires = f.now.Add(time.Duration(n) * time.Second)
			case "px":
				e.expires = f.now.Add(time.Duration(n) * time.Millisecond)
			}
		}

		f.entries[key] = e
		cmd.(*redis.StatusCmd).SetVal("OK")
	case "del":
		var n int64

		for _, k := range args[1:] {
			if f.lookup(argString(k)) != nil {
				delete(f.entries, argString(k))
				n++
			}
		}

		cmd.(*redis.IntCmd).SetVal(n)
	case "hset":
		e := f.lookup(key)
		if e == nil {
			e = &fakeEntry{fields: make(map[string]string)}
			f.entries[key] = e
		}

		for i := 2; i+1 < len(args); i += 2 {
			e.fields[argString(args[i])] = argString(args[i+1])
		}

		cmd.(*redis.IntCmd).SetVal(int64((len(args) - 2) / 2))
	case "hget":
		e := f.lookup(key)
		if e == nil {
			return redis.Nil
		}

		v, ok := e.fields[argString(args[2])]
		if !ok {
			return redis.Nil
		}

		cmd.(*redis.StringCmd).SetVal(v)
	case "hdel":
		var n int64

		if e := f.lookup(key); e != nil {
			for _, field := range args[2:] {
				if _, ok := e.fields[argString(field)]; ok {
					delete(e.fields, argString(field))
					n++
				}
			}
		}

		cmd.(*redis.IntCmd).SetVal(n)
	case "expire":
		e := f.lookup(key)
		if e == nil {
			cmd.(*redis.BoolCmd).SetVal(false)
			return nil
		}

		secs, _ := strconv.ParseInt(argString(args[2]), 10, 64)
		e.expires = f.now.Add(time.Duration(secs) * time.Second)
		cmd.(*redis.BoolCmd).SetVal(true)
	default:
		return fmt.Errorf("fake redis: unsupported command %s", name)
	}

	return nil
}

func argString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}
