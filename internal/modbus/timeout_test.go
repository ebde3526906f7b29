package modbus

import (
	"testing"
	"time"
)

// B1: calculate_modbus_rtu_timeout(bits=10, delay=0, baud=9600, message=10) = 14040 ns;
// (bits=10, delay=1_200_000 ns, ...) = 1_214_040 ns.
func TestTimeoutBoundary(t *testing.T) {
	if got := Timeout(10, 0, 9600, 10); got != 14040*time.Nanosecond {
		t.Fatalf("got %v want 14040ns", got)
	}
	if got := Timeout(10, 1_200_000*time.Nanosecond, 9600, 10); got != 1_214_040*time.Nanosecond {
		t.Fatalf("got %v want 1214040ns", got)
	}
}

func TestTimeoutBitsVariants(t *testing.T) {
	if got := Timeout(11, 0, 9600, 10); got != 15444*time.Nanosecond {
		t.Fatalf("11 bits: got %v want 15444ns", got)
	}
	if got := Timeout(9, 0, 9600, 10); got != 12636*time.Nanosecond {
		t.Fatalf("9 bits: got %v want 12636ns", got)
	}
}

func TestTimeoutEdgeCases(t *testing.T) {
	if got := Timeout(10, 0, 9600, 0); got != 3640*time.Nanosecond {
		t.Fatalf("zero message: got %v want 3640ns", got)
	}
	if got := Timeout(10, 0, 10_000_000, 10); got != 0 {
		t.Fatalf("very high baud: got %v want 0", got)
	}
	if got := Timeout(10, 0, 9600, 1_000_000); got != 1_040_003_640*time.Nanosecond {
		t.Fatalf("large message: got %v want 1040003640ns", got)
	}
}

// Whatever unit constant the timeout uses, the contract that matters
// for queue liveness is monotonicity: more bits, more bytes, or a
// larger delay never decreases the timeout.
func TestTimeoutMonotonic(t *testing.T) {
	base := Timeout(10, 0, 9600, 10)
	if got := Timeout(11, 0, 9600, 10); got <= base {
		t.Errorf("more bits should not shrink timeout: %v <= %v", got, base)
	}
	if got := Timeout(10, 0, 9600, 20); got <= base {
		t.Errorf("more message bytes should not shrink timeout: %v <= %v", got, base)
	}
	if got := Timeout(10, time.Millisecond, 9600, 10); got <= base {
		t.Errorf("added delay should not shrink timeout: %v <= %v", got, base)
	}
}
