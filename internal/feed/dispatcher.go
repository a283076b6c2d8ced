package feed

import (
	"sync"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"optchain/internal/common"
)

const (
	UPDATE_CHAN_SIZE     = 1024
	SUBSCRIBER_CHAN_SIZE = 64
)

// Dispatcher fans top-of-book changes out to subscribers. It satisfies the
// chain package's QuoteObserver: QuoteChanged is called synchronously on the
// mutating goroutine, so it must never block — when the inbound buffer is
// full the update is dropped and counted rather than stalling the book.
type Dispatcher struct {
	t       *tomb.Tomb
	updates chan common.QuoteUpdate

	mu          sync.Mutex
	subscribers []chan common.QuoteUpdate
	dropped     uint64
}

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		t:       &tomb.Tomb{},
		updates: make(chan common.QuoteUpdate, UPDATE_CHAN_SIZE),
	}
	d.t.Go(d.run)
	return d
}

// QuoteChanged enqueues an update for delivery. Never blocks.
func (d *Dispatcher) QuoteChanged(update common.QuoteUpdate) {
	select {
	case d.updates <- update:
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		log.Warn().Str("instrument", update.Instrument).Msg("quote update dropped, dispatcher backlog full")
	}
}

// Subscribe registers a new consumer. A slow consumer loses updates rather
// than backpressuring the hierarchy.
func (d *Dispatcher) Subscribe() <-chan common.QuoteUpdate {
	ch := make(chan common.QuoteUpdate, SUBSCRIBER_CHAN_SIZE)
	d.mu.Lock()
	d.subscribers = append(d.subscribers, ch)
	d.mu.Unlock()
	return ch
}

// Dropped returns the number of updates discarded because of full buffers.
func (d *Dispatcher) Dropped() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Close stops the delivery loop and closes all subscriber channels.
func (d *Dispatcher) Close() error {
	d.t.Kill(nil)
	return d.t.Wait()
}

func (d *Dispatcher) run() error {
	defer func() {
		d.mu.Lock()
		for _, ch := range d.subscribers {
			close(ch)
		}
		d.subscribers = nil
		d.mu.Unlock()
	}()

	for {
		select {
		case <-d.t.Dying():
			return nil
		case update := <-d.updates:
			d.mu.Lock()
			for _, ch := range d.subscribers {
				select {
				case ch <- update:
				default:
					d.dropped++
				}
			}
			d.mu.Unlock()
		}
	}
}
