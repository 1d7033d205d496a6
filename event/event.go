// Copyright 2024 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const EventQueueSize = 20

type EventType string

type EventSubscriberId int

type EventHandlerFunc func(Event)

type Event struct {
	Timestamp time.Time
	Data      any
	Type      EventType
	// Sequence is assigned by the bus on publish. It increases by one for
	// every event published on the bus, regardless of type.
	Sequence uint64
}

func NewEvent(eventType EventType, eventData any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      eventData,
	}
}

// EventBus hands published events to subscribers in publish order. Publish
// calls are serialized, so every subscriber sees events in the same order the
// producer emitted them. In-memory subscribers queue events without bound,
// which means a slow consumer never stalls the publisher.
type EventBus struct {
	subscribers map[EventType]map[EventSubscriberId]Subscriber
	metrics     *eventMetrics
	logger      *slog.Logger
	lastSubId   EventSubscriberId
	sequence    uint64
	mu          sync.RWMutex
	publishMu   sync.Mutex
	stopMu      sync.RWMutex
	handlerWg   sync.WaitGroup
}

// NewEventBus creates a new EventBus
func NewEventBus(
	promRegistry prometheus.Registerer,
	logger *slog.Logger,
) *EventBus {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	e := &EventBus{
		subscribers: make(map[EventType]map[EventSubscriberId]Subscriber),
		logger:      logger.With("component", "event"),
	}
	if promRegistry != nil {
		e.metrics = newEventMetrics(promRegistry)
	}
	return e
}

// Subscriber is a delivery abstraction that allows the EventBus to deliver
// events to in-memory channels and to external sinks via the same interface.
// Deliver is called with the bus publish lock held and must not block.
// Implementations must ensure Close() is idempotent.
type Subscriber interface {
	Deliver(Event) error
	Close()
}

// eventQueue is an unbounded FIFO of events waiting to be consumed
type eventQueue struct {
	items  []Event
	notify chan struct{}
	mu     sync.Mutex
	closed bool
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		notify: make(chan struct{}, 1),
	}
}

func (q *eventQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// push appends an event. Events pushed after close are dropped.
func (q *eventQueue) push(evt Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, evt)
	q.mu.Unlock()
	q.wake()
}

// close stops the queue from accepting events. Pending events are kept for
// next unless discard is set.
func (q *eventQueue) close(discard bool) {
	q.mu.Lock()
	q.closed = true
	if discard {
		q.items = nil
	}
	q.mu.Unlock()
	q.wake()
}

// next blocks until an event is available. It returns false once the queue
// is closed and empty.
func (q *eventQueue) next() (Event, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			evt := q.items[0]
			q.items[0] = Event{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return evt, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return Event{}, false
		}
		<-q.notify
	}
}

// channelSubscriber forwards queued events to a buffered channel from its own
// goroutine. Close discards events the reader has not yet received and closes
// the channel before returning.
type channelSubscriber struct {
	queue     *eventQueue
	ch        chan Event
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

func newChannelSubscriber(buffer int) *channelSubscriber {
	c := &channelSubscriber{
		queue:   newEventQueue(),
		ch:      make(chan Event, buffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *channelSubscriber) run() {
	defer close(c.stopped)
	defer close(c.ch)
	for {
		evt, ok := c.queue.next()
		if !ok {
			return
		}
		select {
		case c.ch <- evt:
		case <-c.done:
			return
		}
	}
}

func (c *channelSubscriber) Deliver(evt Event) error {
	c.queue.push(evt)
	return nil
}

func (c *channelSubscriber) Close() {
	c.closeOnce.Do(func() {
		c.queue.close(true)
		close(c.done)
	})
	<-c.stopped
}

// funcSubscriber runs a handler for each queued event on its own goroutine.
// Events queued before Close are still handled.
type funcSubscriber struct {
	queue *eventQueue
}

func (f *funcSubscriber) Deliver(evt Event) error {
	f.queue.push(evt)
	return nil
}

func (f *funcSubscriber) Close() {
	f.queue.close(false)
}

func subscriberKind(sub Subscriber) string {
	switch sub.(type) {
	case *channelSubscriber, *funcSubscriber:
		return "in-memory"
	}
	return "remote"
}

// Subscribe allows a consumer to receive events of a particular type via a channel
func (e *EventBus) Subscribe(
	eventType EventType,
) (EventSubscriberId, <-chan Event) {
	chSub := newChannelSubscriber(EventQueueSize)
	subId := e.RegisterSubscriber(eventType, chSub)
	return subId, chSub.ch
}

// SubscribeFunc allows a consumer to receive events of a particular type via a
// callback function. The callback runs on a dedicated goroutine and is invoked
// once per event, in publish order.
func (e *EventBus) SubscribeFunc(
	eventType EventType,
	handlerFunc EventHandlerFunc,
) EventSubscriberId {
	// Holding stopMu keeps Stop from waiting before Add is called
	e.stopMu.RLock()
	defer e.stopMu.RUnlock()
	sub := &funcSubscriber{queue: newEventQueue()}
	e.handlerWg.Add(1)
	go func() {
		defer e.handlerWg.Done()
		for {
			evt, ok := sub.queue.next()
			if !ok {
				return
			}
			e.runHandler(eventType, handlerFunc, evt)
		}
	}()
	return e.RegisterSubscriber(eventType, sub)
}

func (e *EventBus) runHandler(
	eventType EventType,
	handlerFunc EventHandlerFunc,
	evt Event,
) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(
				"event handler panic",
				"type", eventType,
				"panic", r,
			)
		}
	}()
	handlerFunc(evt)
}

// RegisterSubscriber adds an externally implemented subscriber and returns
// the assigned subscriber id
func (e *EventBus) RegisterSubscriber(
	eventType EventType,
	sub Subscriber,
) EventSubscriberId {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSubId++
	subId := e.lastSubId
	if _, ok := e.subscribers[eventType]; !ok {
		e.subscribers[eventType] = make(map[EventSubscriberId]Subscriber)
	}
	e.subscribers[eventType][subId] = sub
	if e.metrics != nil {
		e.metrics.subscribers.WithLabelValues(
			string(eventType),
			subscriberKind(sub),
		).Inc()
	}
	return subId
}

// Unsubscribe stops delivery of events for a particular type for an existing subscriber
func (e *EventBus) Unsubscribe(eventType EventType, subId EventSubscriberId) {
	e.mu.Lock()
	var subToClose Subscriber
	if evtTypeSubs, ok := e.subscribers[eventType]; ok {
		if sub, ok := evtTypeSubs[subId]; ok {
			subToClose = sub
			delete(evtTypeSubs, subId)
			if len(evtTypeSubs) == 0 {
				delete(e.subscribers, eventType)
			}
			if e.metrics != nil {
				e.metrics.subscribers.WithLabelValues(
					string(eventType),
					subscriberKind(sub),
				).Dec()
			}
		}
	}
	e.mu.Unlock()
	if subToClose != nil {
		subToClose.Close()
	}
}

// Publish assigns the next sequence number to the event and hands it to all
// subscribers of the event type before returning. Subscribers are visited in
// subscription order. In-memory subscribers only queue the event, so Publish
// does not wait for consumers.
func (e *EventBus) Publish(eventType EventType, evt Event) {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()
	e.sequence++
	evt.Sequence = e.sequence
	e.mu.RLock()
	subs := e.subscribers[eventType]
	ids := make([]EventSubscriberId, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	subList := make([]Subscriber, 0, len(ids))
	for _, id := range ids {
		subList = append(subList, subs[id])
	}
	e.mu.RUnlock()
	for i, sub := range subList {
		var deliverErr error
		func() {
			defer func() {
				if r := recover(); r != nil {
					deliverErr = fmt.Errorf("subscriber deliver panic: %v", r)
				}
			}()
			deliverErr = sub.Deliver(evt)
		}()
		if deliverErr == nil {
			continue
		}
		// Drop subscribers that fail delivery
		e.Unsubscribe(eventType, ids[i])
		if e.metrics != nil {
			e.metrics.deliveryErrors.WithLabelValues(
				string(eventType),
				subscriberKind(sub),
			).Inc()
		}
		e.logger.Debug(
			"event delivery error",
			"type", eventType,
			"error", deliverErr,
		)
	}
	if e.metrics != nil {
		e.metrics.eventsTotal.WithLabelValues(string(eventType)).Inc()
	}
}

// Stop closes all subscribers and waits for SubscribeFunc handlers to finish
// the events queued before the call.
// The EventBus can still be used after Stop() is called.
func (e *EventBus) Stop() {
	e.stopMu.Lock()
	defer e.stopMu.Unlock()
	e.mu.Lock()
	subsCopy := e.subscribers
	e.subscribers = make(map[EventType]map[EventSubscriberId]Subscriber)
	e.mu.Unlock()
	for _, evtTypeSubs := range subsCopy {
		for _, sub := range evtTypeSubs {
			sub.Close()
		}
	}
	if e.metrics != nil {
		e.metrics.subscribers.Reset()
	}
	e.handlerWg.Wait()
}
