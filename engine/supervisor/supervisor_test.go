package supervisor

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseTaskNameShortcut(t *testing.T) {
	cases := []struct {
		in       string
		wantBase string
		wantN    int
	}{
		{"5_gpt_email_consumer", "gpt_email_consumer", 5},
		{"mailbox_read_producer", "mailbox_read_producer", 1},
		{"1_mailbox_read_producer", "mailbox_read_producer", 1},
		{"_leading_underscore", "_leading_underscore", 1},
	}
	for _, c := range cases {
		base, n := ParseTaskName(c.in)
		if base != c.wantBase || n != c.wantN {
			t.Errorf("ParseTaskName(%q) = (%q, %d), want (%q, %d)", c.in, base, n, c.wantBase, c.wantN)
		}
	}
}

func TestStartStopRunsAndStopsTask(t *testing.T) {
	s := New(testLogger())
	started := make(chan int, 1)

	s.Register(Task{
		Name: "gpt_email_consumer",
		Kind: Consumer,
		Fn: func(ctx context.Context, stop <-chan struct{}, nTasks int) {
			started <- nTasks
			<-stop
		},
	})

	if err := s.Start(context.Background(), "5_gpt_email_consumer"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	select {
	case n := <-started:
		if n != 5 {
			t.Errorf("nTasks = %d, want 5", n)
		}
	case <-time.After(time.Second):
		t.Fatal("task did not start in time")
	}

	if !s.IsRunning("gpt_email_consumer") {
		t.Error("expected task to be reported as running")
	}

	if err := s.Stop("gpt_email_consumer"); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if s.IsRunning("gpt_email_consumer") {
		t.Error("expected task to be reported as stopped")
	}
}

func TestStartTwiceIsNoOp(t *testing.T) {
	s := New(testLogger())
	calls := 0

	s.Register(Task{
		Name: "producer",
		Kind: Producer,
		Fn: func(ctx context.Context, stop <-chan struct{}, nTasks int) {
			calls++
			<-stop
		},
	})

	s.Start(context.Background(), "producer")
	time.Sleep(10 * time.Millisecond)
	s.Start(context.Background(), "producer") // should be a no-op
	time.Sleep(10 * time.Millisecond)

	if calls != 1 {
		t.Errorf("expected task function invoked once, got %d", calls)
	}
	s.Stop("producer")
}

func TestStopAllStopsEveryRunningTask(t *testing.T) {
	s := New(testLogger())
	var stopped atomic.Int32

	for _, name := range []string{"a", "b", "c"} {
		s.Register(Task{
			Name: name,
			Kind: Consumer,
			Fn: func(ctx context.Context, stop <-chan struct{}, nTasks int) {
				<-stop
				stopped.Add(1)
			},
		})
		s.Start(context.Background(), name)
	}

	s.StopAll()

	for _, name := range []string{"a", "b", "c"} {
		if s.IsRunning(name) {
			t.Errorf("expected %q to be stopped", name)
		}
	}
}

func TestDescribeReflectsRunningState(t *testing.T) {
	s := New(testLogger())
	s.Register(Task{
		Name: "mailbox_read_producer",
		Kind: Producer,
		Fn: func(ctx context.Context, stop <-chan struct{}, nTasks int) {
			<-stop
		},
	})

	statuses := s.Describe()
	if len(statuses) != 1 || statuses[0].Running {
		t.Fatalf("expected one non-running task, got %+v", statuses)
	}

	s.Start(context.Background(), "mailbox_read_producer")
	statuses = s.Describe()
	if !statuses[0].Running {
		t.Error("expected task to show as running after Start")
	}
	s.Stop("mailbox_read_producer")
}
