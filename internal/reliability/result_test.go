package reliability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAwaitOK(t *testing.T) {
	res := Await(context.Background(), time.Second, func(context.Context) (string, error) {
		return "hola", nil
	})
	if !res.OK() || res.Value != "hola" {
		t.Fatalf("Await() = %+v, want ok hola", res)
	}
}

func TestAwaitError(t *testing.T) {
	boom := errors.New("boom")
	res := Await(context.Background(), time.Second, func(context.Context) (string, error) {
		return "", boom
	})
	if res.Status != StatusError || !errors.Is(res.Err, boom) {
		t.Fatalf("Await() = %+v, want error boom", res)
	}
}

func TestAwaitTimesOutPortIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	res := Await(context.Background(), 30*time.Millisecond, func(context.Context) (string, error) {
		<-release
		return "late", nil
	})
	if res.Status != StatusTimeout {
		t.Fatalf("Status = %q, want timeout", res.Status)
	}
	if res.Value != "" {
		t.Fatalf("Value = %q, want empty on timeout", res.Value)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Await() took %s, want about the budget", elapsed)
	}
}

func TestAwaitTimeoutFromPortContext(t *testing.T) {
	res := Await(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if res.Status != StatusTimeout {
		t.Fatalf("Status = %q, want timeout", res.Status)
	}
}

func TestAwaitRecoversPanic(t *testing.T) {
	res := Await(context.Background(), time.Second, func(context.Context) (int, error) {
		panic("bad port")
	})
	if res.Status != StatusError || res.Err == nil {
		t.Fatalf("Await() = %+v, want error from panic", res)
	}
}
