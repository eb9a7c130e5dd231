package identity

import "testing"

func TestNext_NoConsecutiveRepeat(t *testing.T) {
	p := NewPool([]string{"ua-a", "ua-b", "ua-c"})
	prev := p.Next()
	for i := 0; i < 1000; i++ {
		cur := p.Next()
		if cur == prev {
			t.Fatalf("iteration %d: got %q twice in a row", i, cur)
		}
		prev = cur
	}
}

func TestNext_SingleEntryPool(t *testing.T) {
	p := NewPool([]string{"only-ua"})
	for i := 0; i < 10; i++ {
		if got := p.Next(); got != "only-ua" {
			t.Fatalf("expected only-ua, got %q", got)
		}
	}
}

func TestNext_CoversAllAgents(t *testing.T) {
	agents := []string{"a", "b", "c", "d"}
	p := NewPool(agents)
	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		seen[p.Next()] = true
	}
	for _, a := range agents {
		if !seen[a] {
			t.Errorf("agent %q never selected", a)
		}
	}
}

func TestNewPool_DefaultsWhenEmpty(t *testing.T) {
	p := NewPool(nil)
	if p.Size() == 0 {
		t.Fatal("expected built-in default agents")
	}
	if p.Next() == "" {
		t.Fatal("expected non-empty agent")
	}
}

func TestReplace(t *testing.T) {
	p := NewPool([]string{"old-a", "old-b"})
	p.Replace([]string{"new-only"})
	if p.Size() != 1 || p.Next() != "new-only" {
		t.Fatalf("replace not applied, size=%d", p.Size())
	}

	p.Replace(nil) // ignored
	if p.Size() != 1 {
		t.Error("empty replace must not wipe the pool")
	}
}

func TestNewPool_CopiesInput(t *testing.T) {
	agents := []string{"x", "y"}
	p := NewPool(agents)
	agents[0] = "mutated"
	for i := 0; i < 20; i++ {
		if p.Next() == "mutated" {
			t.Fatal("pool shares backing array with caller")
		}
	}
}
