/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"sync"
	"time"
)

// Observer is one connected party receiving broadcasts. The send
// channel is buffered; a client that stops draining it is dropped
// rather than allowed to stall the game.
type Observer struct {
	send chan any
}

func newObserver() *Observer {
	return &Observer{
		send: make(chan any, 16),
	}
}

// notifier is what the session registry needs from the fan-out side.
type notifier interface {
	publish(kind string, msg any)
}

// Coordinator fans change notifications out to all attached observers.
// Bursts of the same event kind within the coalescing window collapse
// to a single broadcast of the latest payload; different kinds never
// coalesce with each other. Every payload is a self-contained full
// snapshot of its concern, so dropping intermediate ones loses
// nothing.
type Coordinator struct {
	cfg *Config

	mu        sync.Mutex
	observers map[*Observer]bool
	pending   map[string]any
	flusher   *time.Timer
}

func newCoordinator(cfg *Config) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		observers: make(map[*Observer]bool),
		pending:   make(map[string]any),
	}
}

// attach registers an observer for future broadcasts. The caller is
// expected to follow up with a direct snapshot send so the new
// observer is never stuck waiting for the next delta.
func (c *Coordinator) attach(o *Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.observers[o] = true
}

// detach removes an observer. Safe to call after the observer has
// already been dropped for falling behind.
func (c *Coordinator) detach(o *Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.observers[o]; ok {
		delete(c.observers, o)
		close(o.send)
	}
}

// direct sends msg to a single observer, bypassing coalescing. Used
// for snapshots, join acks, and rejections.
func (c *Coordinator) direct(o *Observer, msg any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.observers[o] {
		return
	}

	select {
	case o.send <- msg:
	default:
		delete(c.observers, o)
		close(o.send)
	}
}

// publish queues msg for broadcast under the coalescing policy. With a
// non-positive window it fans out synchronously, which keeps tests
// deterministic.
func (c *Coordinator) publish(kind string, msg any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.coalesceWindow <= 0 {
		c.fanOutLocked(msg)
		return
	}

	c.pending[kind] = msg

	if c.flusher == nil {
		c.flusher = time.AfterFunc(c.cfg.coalesceWindow, c.flush)
	}
}

func (c *Coordinator) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.flusher = nil

	for kind, msg := range c.pending {
		delete(c.pending, kind)
		c.fanOutLocked(msg)
	}
}

// fanOutLocked assumes c.mu is already held. Observers with a full
// send buffer are dropped, the same way the hub handles slow
// websocket clients.
func (c *Coordinator) fanOutLocked(msg any) {
	for o := range c.observers {
		select {
		case o.send <- msg:
		default:
			delete(c.observers, o)
			close(o.send)
		}
	}
}

// observerCount reports how many observers are currently attached.
func (c *Coordinator) observerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.observers)
}
