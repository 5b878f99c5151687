package taskqueue_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ncrafter/iomux/internal/taskqueue"
)

func TestQueueConcurrentEnqueueDequeue(t *testing.T) {
	q := taskqueue.New()
	var wg sync.WaitGroup
	wg.Add(4)

	var producersDone int32
	producer := func() {
		defer wg.Done()
		for i := 0; i < 10000; i++ {
			q.Enqueue(func() {})
		}
		atomic.AddInt32(&producersDone, 1)
	}
	go producer()
	go producer()

	var counter int32
	consumer := func() {
		defer wg.Done()
		for {
			task := q.Dequeue()
			if task != nil {
				task()
				atomic.AddInt32(&counter, 1)
				continue
			}
			if atomic.LoadInt32(&producersDone) == 2 {
				return
			}
		}
	}
	go consumer()
	go consumer()

	wg.Wait()
	if counter != 20000 {
		t.Fatalf("expected to drain 20000 tasks, got %d", counter)
	}
}

func TestQueueFIFOOrder(t *testing.T) {
	q := taskqueue.New()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		q.Enqueue(func() { order = append(order, i) })
	}
	q.DrainAll()
	for i, v := range order {
		if v != i {
			t.Fatalf("expected FIFO order, got %v", order)
		}
	}
}

func TestQueueIsEmpty(t *testing.T) {
	q := taskqueue.New()
	if !q.IsEmpty() {
		t.Fatal("new queue should be empty")
	}
	q.Enqueue(func() {})
	if q.IsEmpty() {
		t.Fatal("queue with one task should not be empty")
	}
	q.DrainAll()
	if !q.IsEmpty() {
		t.Fatal("drained queue should be empty")
	}
}
