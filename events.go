// Copyright 2026 Ian Lewis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bibindex

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ianlewis/go-bibindex/corpus"
	"github.com/ianlewis/go-bibindex/extract"
)

// EventKind is the kind of a build Event.
type EventKind int

const (
	// EventProgress reports the fraction of the corpus scanned.
	EventProgress EventKind = iota

	// EventReady reports that the index is built and queries are served.
	EventReady

	// EventFailed reports that the build failed.
	EventFailed

	// EventCancelled reports that the build was cancelled.
	EventCancelled
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventReady:
		return "ready"
	case EventFailed:
		return "failed"
	case EventCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Terminal reports whether k ends a build.
func (k EventKind) Terminal() bool {
	return k != EventProgress
}

// Event is a notification about a running build.
type Event struct {
	Kind EventKind

	// Ratio is the scanned fraction of the corpus in [0, 1].
	Ratio float64

	// Err is set for EventFailed and EventCancelled.
	Err error

	// Result is set for EventReady.
	Result *Result
}

// ErrorKind returns the kind of the event's error.
func (ev Event) ErrorKind() ErrorKind {
	return KindOf(ev.Err)
}

// Result describes a loaded index.
type Result struct {
	extract.Stats

	// Identity is the fingerprint of the indexed corpus.
	Identity corpus.Identity

	// Authors and Titles are the number of index entries.
	Authors int
	Titles  int

	// Duration is the time taken to build or load the index.
	Duration time.Duration

	// Loaded is true if the index was read from the store rather than
	// built.
	Loaded bool
}

// Job is a running build.
type Job struct {
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}

	// progress throttles progress events.
	progress rate.Sometimes
	ratio    float64

	mu     sync.Mutex
	result *Result
	err    error
}

func newJob(cancel context.CancelFunc, buffer int, interval time.Duration) *Job {
	// One slot is reserved for the terminal event.
	if buffer < 1 {
		buffer = 1
	}
	j := &Job{
		events: make(chan Event, buffer+1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	j.progress.Interval = interval
	if interval <= 0 {
		j.progress.Every = 1
	}
	return j
}

// Events returns the channel of build events. Progress events may be dropped
// if the channel is not drained. Exactly one terminal event is delivered,
// after which the channel is closed.
func (j *Job) Events() <-chan Event {
	return j.events
}

// Cancel requests cancellation of the build. It does not wait for the build
// to stop.
func (j *Job) Cancel() {
	j.cancel()
}

// Done returns a channel that is closed when the build has finished.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait waits for the build to finish and returns its result.
func (j *Job) Wait() (*Result, error) {
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.err
}

// running reports whether the build has not finished.
func (j *Job) running() bool {
	select {
	case <-j.done:
		return false
	default:
		return true
	}
}

// report sends a progress event if one is due. Ratios never decrease.
func (j *Job) report(ratio float64) {
	ratio = min(max(ratio, j.ratio), 1)
	j.progress.Do(func() {
		j.ratio = ratio
		// Leave room for the terminal event.
		if len(j.events) < cap(j.events)-1 {
			j.events <- Event{Kind: EventProgress, Ratio: ratio}
		}
	})
}

// finish records the outcome, sends the terminal event and closes the
// channel.
func (j *Job) finish(res *Result, err error) {
	j.mu.Lock()
	j.result, j.err = res, err
	j.mu.Unlock()

	ev := Event{Kind: EventReady, Ratio: 1, Result: res}
	switch KindOf(err) {
	case KindNone:
	case KindCancelled:
		ev = Event{Kind: EventCancelled, Ratio: j.ratio, Err: err}
	default:
		ev = Event{Kind: EventFailed, Ratio: j.ratio, Err: err}
	}
	j.events <- ev
	close(j.events)
	close(j.done)
	j.cancel()
}
