package utils

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestTaskQueueRunsAllTasks(t *testing.T) {
	q := NewTaskQueue(2, 1, NewLogger())

	var ran int64
	for i := 0; i < 20; i++ {
		q.Submit("task", func() error {
			atomic.AddInt64(&ran, 1)
			return nil
		})
	}
	q.Wait()

	if ran != 20 {
		t.Errorf("ran: got %d, want 20", ran)
	}
	ok, failed := q.Stats()
	if ok != 20 || failed != 0 {
		t.Errorf("stats: got %d ok / %d failed", ok, failed)
	}
}

func TestTaskQueueRetriesBeforeFailing(t *testing.T) {
	q := NewTaskQueue(1, 3, NewLogger())

	var attempts int64
	q.Submit("flaky", func() error {
		if atomic.AddInt64(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	q.Wait()

	if attempts != 3 {
		t.Errorf("attempts: got %d, want 3", attempts)
	}
	ok, failed := q.Stats()
	if ok != 1 || failed != 0 {
		t.Errorf("stats: got %d ok / %d failed", ok, failed)
	}
}

func TestTaskQueueCountsExhaustedRetries(t *testing.T) {
	q := NewTaskQueue(1, 2, NewLogger())

	q.Submit("doomed", func() error { return errors.New("permanent") })
	q.Wait()

	ok, failed := q.Stats()
	if ok != 0 || failed != 1 {
		t.Errorf("stats: got %d ok / %d failed, want 0/1", ok, failed)
	}
}
