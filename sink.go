package locktimer

// Sink is the destination of samples that passed the duration filter.
type Sink interface {
	// Write must not block on I/O. It is called on the releasing goroutine
	// after the real lock was released.
	Write(Sample)
	// Close stops the sink. Samples written afterwards are ignored.
	Close() error
}

// disabledSink is selected while logging is off: no file, no goroutine, no
// queue.
type disabledSink struct{}

func (disabledSink) Write(Sample) {}
func (disabledSink) Close() error { return nil }

// sinkRef lets differently typed sinks share one atomic.Pointer.
type sinkRef struct {
	Sink
}
