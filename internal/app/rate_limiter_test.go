package app

import (
	"testing"
	"time"
)

func TestCallRateLimiter(t *testing.T) {
	rl := NewCallRateLimiter(2, time.Hour)

	if !rl.Allow("CUST001") || !rl.Allow("CUST001") {
		t.Fatal("first two attempts should pass")
	}
	if rl.Allow("CUST001") {
		t.Fatal("third attempt inside the window should be blocked")
	}
	// Independent parties have independent windows.
	if !rl.Allow("CUST002") {
		t.Fatal("another party should not be affected")
	}
}

func TestCallRateLimiterWindowExpiry(t *testing.T) {
	rl := NewCallRateLimiter(1, 10*time.Millisecond)

	if !rl.Allow("CUST001") {
		t.Fatal("first attempt should pass")
	}
	if rl.Allow("CUST001") {
		t.Fatal("second immediate attempt should be blocked")
	}
	time.Sleep(20 * time.Millisecond)
	if !rl.Allow("CUST001") {
		t.Fatal("attempt after the window should pass")
	}
}
