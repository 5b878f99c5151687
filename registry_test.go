package iomux

import "testing"

func TestRegistryAddIsIdempotent(t *testing.T) {
	r := newDispatcherRegistry()
	d := &fakeDispatcher{fd: -1}

	r.add(d)
	r.add(d)

	if got := r.len(); got != 1 {
		t.Fatalf("adding the same dispatcher twice produced len=%d, want 1", got)
	}
}

func TestRegistryDoubleRemovePanics(t *testing.T) {
	r := newDispatcherRegistry()
	d := &fakeDispatcher{fd: -1}
	r.add(d)
	r.remove(d)

	defer func() {
		if recover() == nil {
			t.Fatal("removing an already-removed dispatcher did not panic")
		}
	}()
	r.remove(d)
}

func TestRegistryIterateVisitsEachEntryOnce(t *testing.T) {
	r := newDispatcherRegistry()
	var visits []int
	for i := 0; i < 5; i++ {
		i := i
		r.add(&fakeDispatcher{fd: -1, onEvent: func(LogicalEvent, error) { visits = append(visits, i) }})
	}

	r.iterate(func(d Dispatcher) { d.OnEvent(0, nil) })

	if len(visits) != 5 {
		t.Fatalf("iterate visited %d dispatchers, want 5", len(visits))
	}
	for i, v := range visits {
		if v != i {
			t.Fatalf("visit order = %v, want ascending insertion order", visits)
		}
	}
}

func TestRegistryRemoveDuringIterationSkipsRemovedLaterEntry(t *testing.T) {
	r := newDispatcherRegistry()
	var visited []string

	a := &fakeDispatcher{fd: -1}
	b := &fakeDispatcher{fd: -1}
	c := &fakeDispatcher{fd: -1}

	a.onEvent = func(LogicalEvent, error) {
		visited = append(visited, "a")
		r.remove(b)
	}
	b.onEvent = func(LogicalEvent, error) { visited = append(visited, "b") }
	c.onEvent = func(LogicalEvent, error) { visited = append(visited, "c") }

	r.add(a)
	r.add(b)
	r.add(c)

	r.iterate(func(d Dispatcher) { d.OnEvent(0, nil) })

	want := []string{"a", "c"}
	if len(visited) != len(want) {
		t.Fatalf("visited = %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Fatalf("visited = %v, want %v", visited, want)
		}
	}
}
