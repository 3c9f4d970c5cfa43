package validators

import (
	"context"
	"errors"

	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

var errStoreDown = errors.New("store unreachable")

type stubExecutions struct {
	running int
	err     error
	calls   int
}

func (s *stubExecutions) CountRunning(context.Context, string) (int, error) {
	s.calls++
	return s.running, s.err
}

func (s *stubExecutions) MarkStarted(context.Context, string, string) error   { return nil }
func (s *stubExecutions) MarkCompleted(context.Context, string, string) error { return nil }

type stubQuotas struct {
	remaining float64
	err       error
	consumed  int
}

func (s *stubQuotas) Remaining(context.Context, string) (float64, error) { return s.remaining, s.err }

func (s *stubQuotas) Consume(context.Context, string) error {
	s.consumed++
	return nil
}

type stubLocks struct {
	lock *ports.Lock
	err  error
}

func (s *stubLocks) ActiveLock(context.Context, string, string) (*ports.Lock, error) {
	return s.lock, s.err
}

func (s *stubLocks) Acquire(context.Context, ports.Lock) error              { return nil }
func (s *stubLocks) Release(context.Context, ports.LockScope, string) error { return nil }

func testPipeline() pipeline.Pipeline {
	return pipeline.Pipeline{
		ID:          "p1",
		Name:        "deploy",
		Application: "shop",
		Stages: []pipeline.Stage{
			{RefID: "1", Type: "bake"},
			{RefID: "2", Type: "deploy", RequisiteStageRefIDs: []string{"1"}},
		},
	}
}
