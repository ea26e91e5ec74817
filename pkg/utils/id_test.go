package utils

import (
	"strings"
	"sync"
	"testing"
)

func TestGenIDsPrefixed(t *testing.T) {
	c := GenChatID()
	if !strings.HasPrefix(c, "chat#") {
		t.Fatalf("chat id = %q", c)
	}
	m := GenMessageID()
	if !strings.HasPrefix(m, "msg#") {
		t.Fatalf("message id = %q", m)
	}
	if GenChatID() == GenChatID() {
		t.Fatal("chat ids collided")
	}
}

func TestNextMessageTSMonotonic(t *testing.T) {
	const n = 1000
	out := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < n/4; j++ {
				out <- NextMessageTS()
			}
		}()
	}
	wg.Wait()
	close(out)
	seen := make(map[int64]bool, n)
	for ts := range out {
		if seen[ts] {
			t.Fatalf("duplicate ts %d", ts)
		}
		seen[ts] = true
	}
}
