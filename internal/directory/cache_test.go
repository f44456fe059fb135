package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type stubDirectory struct {
	users       map[string]*User
	supervisors map[string]string
	userCalls   int
}

func (s *stubDirectory) GetUser(_ context.Context, id string) (*User, error) {
	s.userCalls++
	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return user, nil
}

func (s *stubDirectory) SupervisorForDepartment(_ context.Context, dept string) (string, error) {
	id, ok := s.supervisors[dept]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func TestNewCachedDirectoryDisabled(t *testing.T) {
	next := &stubDirectory{}
	if got := NewCachedDirectory(next, nil, time.Minute, nil); got != next {
		t.Error("nil redis client should return the wrapped directory")
	}

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()
	if got := NewCachedDirectory(next, client, 0, nil); got != next {
		t.Error("zero ttl should return the wrapped directory")
	}
}

func TestCachedDirectoryFallsThroughOnRedisFailure(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	next := &stubDirectory{
		users:       map[string]*User{"u1": {ID: "u1", Role: "OFFICER", DepartmentID: "D001"}},
		supervisors: map[string]string{"D001": "sup-1"},
	}
	cached := NewCachedDirectory(next, client, time.Minute, nil)
	ctx := context.Background()

	user, err := cached.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if user.DepartmentID != "D001" {
		t.Errorf("GetUser() = %+v", user)
	}
	if next.userCalls != 1 {
		t.Errorf("source calls = %d, want 1", next.userCalls)
	}

	if _, err := cached.GetUser(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser(ghost) error = %v, want ErrNotFound", err)
	}

	sup, err := cached.SupervisorForDepartment(ctx, "D001")
	if err != nil || sup != "sup-1" {
		t.Errorf("SupervisorForDepartment() = %q, %v", sup, err)
	}
}
