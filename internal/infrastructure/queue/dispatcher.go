package queue

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
)

const (
	defaultWorkers = 2
	channelBuffer  = 256
)

// MessageHandler processes a single inbound channel frame.
type MessageHandler interface {
	Handle(ctx context.Context, msg domain.ChannelMessage) error
}

// Dispatcher hands channel frames to a fixed set of workers using consistent
// hashing on the topic, so frames of one topic are handled in arrival order.
type Dispatcher struct {
	workers []chan domain.ChannelMessage
	handler MessageHandler
	log     zerolog.Logger

	startOnce sync.Once
	stopped   chan struct{}
	wg        sync.WaitGroup
}

var _ ports.MessageSink = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, handler MessageHandler, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.ChannelMessage, numWorkers),
		handler: handler,
		log:     log,
		stopped: make(chan struct{}),
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.ChannelMessage, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled;
// Wait blocks until they have.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		for i, ch := range d.workers {
			d.wg.Add(1)
			go d.runWorker(ctx, i, ch)
		}
		go func() {
			<-ctx.Done()
			close(d.stopped)
		}()
	})
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue sends a frame to the worker responsible for its topic. It blocks
// while that worker's buffer is full and drops the frame once the
// dispatcher has stopped.
func (d *Dispatcher) Enqueue(msg domain.ChannelMessage) {
	select {
	case d.workers[d.shardIndex(msg.Topic)] <- msg:
	case <-d.stopped:
		d.log.Debug().Str("topic", msg.Topic).Msg("dispatcher stopped, frame dropped")
	}
}

// shardIndex maps a topic deterministically to a worker index.
func (d *Dispatcher) shardIndex(topic string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.ChannelMessage) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			if err := d.handler.Handle(ctx, msg); err != nil {
				d.log.Error().Err(err).
					Str("topic", msg.Topic).
					Int("worker_id", id).
					Msg("channel frame processing failed")
			}
		}
	}
}
