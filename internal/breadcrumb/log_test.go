package breadcrumb

import (
	"fmt"
	"sync"
	"testing"
)

func TestLog_AppendOrder(t *testing.T) {
	t.Parallel()

	log := NewLog()
	log.AddBreadcrumb("startup")
	log.AddBreadcrumb("scene loaded")
	log.AddWarning("vsync disabled")
	log.AddBreadcrumb("stream started")

	crumbs := log.Breadcrumbs()
	if len(crumbs) != 3 {
		t.Fatalf("expected 3 breadcrumbs, got %d", len(crumbs))
	}
	want := []string{"startup", "scene loaded", "stream started"}
	for i, w := range want {
		if crumbs[i] != w {
			t.Errorf("breadcrumb[%d] = %q, want %q", i, crumbs[i], w)
		}
	}

	warns := log.Warnings()
	if len(warns) != 1 || warns[0] != "vsync disabled" {
		t.Errorf("unexpected warnings: %v", warns)
	}
}

func TestLog_ClearBreadcrumbs(t *testing.T) {
	t.Parallel()

	log := NewLog()
	log.AddBreadcrumb("one")
	log.AddWarning("warn")
	log.ClearBreadcrumbs()

	if got := log.Breadcrumbs(); len(got) != 0 {
		t.Errorf("expected empty breadcrumbs after clear, got %v", got)
	}
	if got := log.Warnings(); len(got) != 1 {
		t.Errorf("clear must not touch warnings, got %v", got)
	}
}

func TestLog_SnapshotIsImmutable(t *testing.T) {
	t.Parallel()

	log := NewLog()
	log.AddBreadcrumb("a")

	snap := log.Breadcrumbs()
	snap[0] = "mutated"

	if got := log.Breadcrumbs()[0]; got != "a" {
		t.Errorf("snapshot mutation leaked into log: %q", got)
	}
}

// N goroutines each appending M entries must yield exactly N*M entries with
// each goroutine's own entries in its append order.
func TestLog_ConcurrentAppend(t *testing.T) {
	t.Parallel()

	const (
		writers = 8
		perEach = 200
	)

	log := NewLog()
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perEach; i++ {
				log.AddBreadcrumb(fmt.Sprintf("w%d-%d", id, i))
			}
		}(w)
	}
	wg.Wait()

	crumbs := log.Breadcrumbs()
	if len(crumbs) != writers*perEach {
		t.Fatalf("expected %d entries, got %d", writers*perEach, len(crumbs))
	}

	// Per-writer subsequences must be in order and complete.
	next := make([]int, writers)
	for _, c := range crumbs {
		var id, seq int
		if _, err := fmt.Sscanf(c, "w%d-%d", &id, &seq); err != nil {
			t.Fatalf("malformed entry %q: %v", c, err)
		}
		if seq != next[id] {
			t.Fatalf("writer %d entry out of order: got seq %d, want %d", id, seq, next[id])
		}
		next[id]++
	}
	for id, n := range next {
		if n != perEach {
			t.Errorf("writer %d lost entries: %d of %d", id, n, perEach)
		}
	}
}
