package session

import (
	"testing"

	"churn/storage"

	"github.com/google/uuid"
	"github.com/raulk/clock"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

// NewTestSession returns a local session with a no-op logger and a mock
// clock, closed automatically when the test ends.
func NewTestSession(t *testing.T, parallelism int) *Session {
	if parallelism <= 0 {
		parallelism = 2
	}
	mock := clock.NewMock()
	sess := &Session{
		ID:          uuid.New(),
		AppName:     "test",
		Master:      "local",
		Parallelism: parallelism,
		Logger:      zap.NewNop(),
		Clock:       mock,
		Storage:     storage.Resolver{Local: storage.Local{}, S3: mo.None[storage.S3]()},
		StartedAt:   mock.Now(),
	}
	sess.register(storage.Local{})
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}
