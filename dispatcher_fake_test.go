package iomux

// fakeDispatcher is a minimal Dispatcher used to exercise registry and
// event-loop iteration semantics in isolation from real socket I/O.
type fakeDispatcher struct {
	fd      int
	onEvent func(LogicalEvent, error)
}

func (f *fakeDispatcher) RequestedEvents() LogicalEvent  { return 0 }
func (f *fakeDispatcher) Descriptor() Handle             { return Handle(f.fd) }
func (f *fakeDispatcher) IsClosed() bool                 { return false }
func (f *fakeDispatcher) OnPreEvent(events LogicalEvent) {}
func (f *fakeDispatcher) OnEvent(events LogicalEvent, err error) {
	if f.onEvent != nil {
		f.onEvent(events, err)
	}
}
