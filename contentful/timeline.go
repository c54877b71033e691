package contentful

import (
	"context"
	"sync"
	"time"
)

type timelineKey struct{}

// TimelineEvent records one HTTP call made to the CMS
type TimelineEvent struct {
	URL        string  `json:"url"`
	Start      int64   `json:"start"`
	DurationMS float64 `json:"duration"`
	StatusCode int     `json:"status,omitempty"`
}

// Timeline collects the CMS calls made while serving a single request
type Timeline struct {
	mx     sync.Mutex
	origin time.Time
	events []TimelineEvent
}

func NewTimeline() *Timeline {
	return &Timeline{origin: time.Now()}
}

func (t *Timeline) add(url string, start time.Time, statusCode int) {
	if t == nil {
		return
	}

	t.mx.Lock()
	defer t.mx.Unlock()

	t.events = append(t.events, TimelineEvent{
		URL:        url,
		Start:      start.Sub(t.origin).Milliseconds(),
		DurationMS: float64(time.Since(start).Microseconds()) / 1000,
		StatusCode: statusCode,
	})
}

// Events returns a copy of the recorded events. Start is relative to the
// creation of the timeline, in milliseconds.
func (t *Timeline) Events() []TimelineEvent {
	if t == nil {
		return nil
	}

	t.mx.Lock()
	defer t.mx.Unlock()

	events := make([]TimelineEvent, len(t.events))
	copy(events, t.events)
	return events
}

// WithTimeline attaches a timeline to the context
func WithTimeline(ctx context.Context, t *Timeline) context.Context {
	return context.WithValue(ctx, timelineKey{}, t)
}

// TimelineFromContext returns the timeline attached to the context, if any
func TimelineFromContext(ctx context.Context) *Timeline {
	if ctx == nil {
		return nil
	}

	t, _ := ctx.Value(timelineKey{}).(*Timeline)
	return t
}
