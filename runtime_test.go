package lio

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/lattice-run/lio/internal/reactor"
)

// resetGlobalForTest tears down whatever Runtime the previous test left
// behind so each test starts from Uninit. It is safe to call even if no
// Runtime was ever created.
func resetGlobalForTest() {
	rt := global.Swap(nil)
	if rt == nil {
		return
	}
	if rt.lc.load() != Exited {
		_ = rt.backend.Close()
	}
}

func TestSubmitBeforeInitReturnsNotInited(t *testing.T) {
	resetGlobalForTest()
	defer resetGlobalForTest()

	if _, err := Timeout(10, func(int32) {}); !IsNotInited(err) {
		t.Fatalf("err = %v, want ErrNotInited", err)
	}
}

func TestTryInitTwiceReportsAlreadyInited(t *testing.T) {
	resetGlobalForTest()
	defer resetGlobalForTest()

	if err := TryInit(WithWorkers(1)); err != nil {
		t.Fatalf("first TryInit: %v", err)
	}
	if err := TryInit(WithWorkers(1)); !IsAlreadyInited(err) {
		t.Fatalf("second TryInit: err = %v, want ErrAlreadyInited", err)
	}
}

func TestExitAfterExitIsANoop(t *testing.T) {
	resetGlobalForTest()
	defer resetGlobalForTest()

	if err := TryInit(WithWorkers(1)); err != nil {
		t.Fatalf("TryInit: %v", err)
	}
	if err := Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := Exit(); err != nil {
		t.Fatalf("first Exit: %v", err)
	}
	if err := Exit(); err != nil {
		t.Fatalf("second Exit: %v", err)
	}
}

func TestFullLifecycleTimeoutFiresExactlyOnce(t *testing.T) {
	resetGlobalForTest()
	defer resetGlobalForTest()

	if err := TryInit(WithWorkers(2)); err != nil {
		t.Fatalf("TryInit: %v", err)
	}
	if err := Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan int32, 1)
	if _, err := Timeout(20, func(result int32) { done <- result }); err != nil {
		t.Fatalf("Timeout: %v", err)
	}

	select {
	case result := <-done:
		if result != 0 {
			t.Fatalf("result = %d, want 0", result)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout callback never fired")
	}

	if err := Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := Exit(); err != nil {
		t.Fatalf("Exit: %v", err)
	}
}

func TestTimeoutRejectsNegativeDurationSynchronously(t *testing.T) {
	resetGlobalForTest()
	defer resetGlobalForTest()

	if err := TryInit(WithWorkers(1)); err != nil {
		t.Fatalf("TryInit: %v", err)
	}
	if err := Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer Exit()

	var got int32 = 1
	id, err := Timeout(-5, func(result int32) { got = result })
	if err != nil {
		t.Fatalf("Timeout: %v", err)
	}
	if id != 0 {
		t.Fatalf("OpId = %d, want 0 (no slot should be allocated)", id)
	}
	if got != -int32(unix.EINVAL) {
		t.Fatalf("result = %d, want %d", got, -int32(unix.EINVAL))
	}
}

func TestCancelOverridesNaturalResultWithECANCELED(t *testing.T) {
	resetGlobalForTest()
	defer resetGlobalForTest()

	if err := TryInit(WithWorkers(1)); err != nil {
		t.Fatalf("TryInit: %v", err)
	}
	if err := Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer Exit()

	done := make(chan int32, 1)
	start := time.Now()
	id, err := Timeout(10000, func(result int32) { done <- result })
	if err != nil {
		t.Fatalf("Timeout: %v", err)
	}
	if !Cancel(id) {
		t.Fatal("Cancel reported no such operation")
	}

	select {
	case result := <-done:
		if result != -int32(reactor.ECANCELED) {
			t.Fatalf("result = %d, want %d", result, -int32(reactor.ECANCELED))
		}
		if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
			t.Fatalf("cancel took %v to deliver, want well under the 10s deadline", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled timeout never fired")
	}
}

func TestThousandConcurrentZeroTimeoutsAllFireBeforeExit(t *testing.T) {
	resetGlobalForTest()
	defer resetGlobalForTest()

	if err := TryInit(WithWorkers(4)); err != nil {
		t.Fatalf("TryInit: %v", err)
	}
	if err := Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	const n = 1000
	done := make(chan int32, n)
	for i := 0; i < n; i++ {
		if _, err := Timeout(0, func(result int32) { done <- result }); err != nil {
			t.Fatalf("Timeout[%d]: %v", i, err)
		}
	}

	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d/%d callbacks fired", i, n)
		}
	}

	if err := Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := Exit(); err != nil {
		t.Fatalf("Exit: %v", err)
	}
}
