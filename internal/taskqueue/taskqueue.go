// Package taskqueue implements the pending-task hand-off queue an
// EventLoop drains at the top of every Wait iteration: a lock-free MPSC
// queue carrying work produced off the wait goroutine (currently,
// AsyncResolver completions) that must run on the wait goroutine before
// the next readiness classification.
//
// Adapted from the teacher's tools/task_queue lock-free queue (itself
// modeled on gnet's task queue), generalized from Task{Run TaskFunc, Arg
// interface{}} to a plain func(), since every producer here already has a
// closure capturing what it needs.
package taskqueue

import (
	"sync/atomic"
	"unsafe"
)

type node struct {
	value func()
	next  unsafe.Pointer // *node
}

// Queue is a Michael-Scott lock-free FIFO queue of func() tasks.
type Queue struct {
	head   unsafe.Pointer // *node
	tail   unsafe.Pointer // *node
	length int32
}

// New returns an empty queue.
func New() *Queue {
	n := unsafe.Pointer(&node{})
	return &Queue{head: n, tail: n}
}

// Enqueue appends task, safe for concurrent use by any number of
// producers.
func (q *Queue) Enqueue(task func()) {
	n := &node{value: task}
	for {
		tail := loadNode(&q.tail)
		next := loadNode(&tail.next)
		if tail == loadNode(&q.tail) {
			if next == nil {
				if casNode(&tail.next, next, n) {
					casNode(&q.tail, tail, n)
					atomic.AddInt32(&q.length, 1)
					return
				}
			} else {
				casNode(&q.tail, tail, next)
			}
		}
	}
}

// Dequeue removes and returns the oldest task, or nil if the queue is
// empty. Safe for several concurrent consumers; the EventLoop calls it only
// from its wait goroutine.
func (q *Queue) Dequeue() func() {
	for {
		head := loadNode(&q.head)
		tail := loadNode(&q.tail)
		next := loadNode(&head.next)
		if head != loadNode(&q.head) {
			continue
		}
		if head == tail {
			if next == nil {
				return nil
			}
			casNode(&q.tail, tail, next)
			continue
		}
		task := next.value
		if casNode(&q.head, head, next) {
			atomic.AddInt32(&q.length, -1)
			return task
		}
	}
}

// IsEmpty reports whether the queue currently holds no tasks.
func (q *Queue) IsEmpty() bool {
	return atomic.LoadInt32(&q.length) == 0
}

// DrainAll dequeues and runs every task currently queued, in FIFO order.
// It does not loop forever on producers racing ahead of it: it snapshots
// nothing, simply drains until empty at the moment of the call.
func (q *Queue) DrainAll() {
	for {
		task := q.Dequeue()
		if task == nil {
			return
		}
		task()
	}
}

func loadNode(p *unsafe.Pointer) *node {
	return (*node)(atomic.LoadPointer(p))
}

func casNode(p *unsafe.Pointer, old, new *node) bool {
	return atomic.CompareAndSwapPointer(p, unsafe.Pointer(old), unsafe.Pointer(new))
}
