/*
dispatcher.go - Per-chat serialized event processing

PURPOSE:
  The webhook handler must return quickly, and the conversation engine
  requires that events for one chat are processed one at a time, in arrival
  order. The dispatcher gives each chat its own worker goroutine with a
  bounded queue: events for different chats run concurrently, events for the
  same chat never do.

DELIVERY:
  A failed send is logged and the remaining replies for that event are still
  attempted, so one flaky photo upload does not swallow the menu that follows
  it. The engine state has already advanced; retrying here would reorder the
  conversation.

SHUTDOWN:
  Close stops intake, lets every worker drain its queue, and blocks until
  all workers exit.
*/
package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/creditbook/conversation"
)

const (
	chatQueueSize = 16
	workerIdleTTL = 10 * time.Minute
	handleTimeout = 30 * time.Second
)

// Dispatcher fans inbound events out to per-chat workers.
type Dispatcher struct {
	engine *conversation.Engine
	sender Sender

	mu      sync.Mutex
	workers map[int64]*chatWorker
	closed  bool
	wg      sync.WaitGroup
}

type chatWorker struct {
	queue    chan conversation.Event
	lastSeen time.Time
}

// NewDispatcher creates a dispatcher routing events through engine and
// delivering replies via sender.
func NewDispatcher(engine *conversation.Engine, sender Sender) *Dispatcher {
	return &Dispatcher{
		engine:  engine,
		sender:  sender,
		workers: make(map[int64]*chatWorker),
	}
}

// Dispatch queues an event for its chat's worker. Returns false when the
// dispatcher is closed or the chat's queue is full; the caller should drop
// the event (the platform will not redeliver meaningfully out of order).
func (d *Dispatcher) Dispatch(ev conversation.Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	w, ok := d.workers[ev.ChatID]
	if !ok {
		w = &chatWorker{queue: make(chan conversation.Event, chatQueueSize)}
		d.workers[ev.ChatID] = w
		d.wg.Add(1)
		go d.run(ev.ChatID, w)
	}
	w.lastSeen = time.Now()

	// The send stays under the mutex: it never blocks (buffered channel,
	// default case), and Close closes queues under the same mutex, so a
	// send can never race a close.
	select {
	case w.queue <- ev:
		return true
	default:
		slog.Warn("chat queue full, dropping event", "chat_id", ev.ChatID)
		return false
	}
}

// Close stops intake and waits for all workers to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, w := range d.workers {
		close(w.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// run is the worker loop for one chat. It exits when the queue is closed or
// after sitting idle past workerIdleTTL.
func (d *Dispatcher) run(chatID int64, w *chatWorker) {
	defer d.wg.Done()
	idle := time.NewTimer(workerIdleTTL)
	defer idle.Stop()

	for {
		select {
		case ev, ok := <-w.queue:
			if !ok {
				return
			}
			d.handle(ev)
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(workerIdleTTL)

		case <-idle.C:
			if d.retire(chatID, w) {
				return
			}
			idle.Reset(workerIdleTTL)
		}
	}
}

// retire removes an idle worker unless an event raced in. When it loses the
// race it keeps running; the queue still has the newly dispatched event.
func (d *Dispatcher) retire(chatID int64, w *chatWorker) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		// Close already owns shutdown; keep draining until the queue closes.
		return false
	}
	if time.Since(w.lastSeen) < workerIdleTTL || len(w.queue) > 0 {
		return false
	}
	delete(d.workers, chatID)
	return true
}

func (d *Dispatcher) handle(ev conversation.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	replies := d.engine.Handle(ctx, ev)
	for _, reply := range replies {
		if err := d.sender.Send(ctx, ev.ChatID, reply); err != nil {
			slog.Error("failed to send reply",
				"chat_id", ev.ChatID,
				"error", err,
			)
		}
	}
}
