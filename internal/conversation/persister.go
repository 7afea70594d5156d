// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import "sync"

// persister runs write on its own goroutine whenever it is kicked. Kicks
// that arrive while a write is pending collapse into one.
type persister struct {
	write   func()
	kicks   chan struct{}
	flushes chan chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newPersister(write func()) *persister {
	p := &persister{
		write:   write,
		kicks:   make(chan struct{}, 1),
		flushes: make(chan chan struct{}),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *persister) loop() {
	defer close(p.stopped)
	for {
		select {
		case <-p.kicks:
			p.write()
		case ack := <-p.flushes:
			p.write()
			close(ack)
		case <-p.done:
			p.write()
			return
		}
	}
}

// kick schedules a write without blocking.
func (p *persister) kick() {
	select {
	case p.kicks <- struct{}{}:
	default:
	}
}

// flush waits for a write that observes all prior changes.
func (p *persister) flush() {
	ack := make(chan struct{})
	select {
	case p.flushes <- ack:
		<-ack
	case <-p.stopped:
	}
}

// stop performs a final write and ends the goroutine.
func (p *persister) stop() {
	p.once.Do(func() { close(p.done) })
	<-p.stopped
}
