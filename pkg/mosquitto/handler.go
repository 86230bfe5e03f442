package mosquitto

import "sync"

// ChannelHandler delivers messages to a channel instead of a callback. Use
// it with Client.SetMessageChannel and read from Messages on any goroutine.
// Once the client closes the channel, later deliveries are dropped.
type ChannelHandler interface {
	Messages() <-chan Message
	handle(Message)
	close()
}

// FifoChannel queues messages in a buffered channel. When the buffer is full
// delivery blocks the native network thread until the reader catches up or
// the channel is closed. Client.Close closes the channel before stopping the
// loop, so a stalled reader cannot hang Close.
type FifoChannel struct {
	channel chan Message
	done    chan struct{}
	once    sync.Once

	// Senders hold mu for reading while they wait; close takes it for
	// writing after done has released them.
	mu     sync.RWMutex
	closed bool
}

// NewFifoChannel creates a channel handler with the given buffer size. A
// size of 0 makes every delivery wait for a reader.
func NewFifoChannel(bufferSize int) *FifoChannel {
	return &FifoChannel{
		channel: make(chan Message, bufferSize),
		done:    make(chan struct{}),
	}
}

func (f *FifoChannel) Messages() <-chan Message { return f.channel }

func (f *FifoChannel) handle(m Message) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	select {
	case f.channel <- m:
	case <-f.done:
	}
}

func (f *FifoChannel) close() {
	f.once.Do(func() {
		close(f.done)
		f.mu.Lock()
		f.closed = true
		close(f.channel)
		f.mu.Unlock()
	})
}

// RingChannel keeps the newest messages. When the buffer is full the oldest
// queued message is dropped, so the network thread never blocks.
type RingChannel struct {
	channel chan Message
	mu      sync.Mutex
	closed  bool
}

// NewRingChannel creates a ring buffer handler. The capacity must be greater
// than 0.
func NewRingChannel(capacity int) *RingChannel {
	if capacity <= 0 {
		panic("mosquitto: ring channel capacity must be > 0")
	}
	return &RingChannel{channel: make(chan Message, capacity)}
}

func (r *RingChannel) Messages() <-chan Message { return r.channel }

func (r *RingChannel) handle(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for {
		select {
		case r.channel <- m:
			return
		default:
		}
		// Full: drop the oldest. A concurrent reader may have emptied it
		// already, in which case the send is retried.
		select {
		case <-r.channel:
		default:
		}
	}
}

func (r *RingChannel) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.channel)
}
