package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"soh-gateway/internal/consumer"
	"soh-gateway/internal/events"
	"soh-gateway/internal/publisher"
)

// FakeReader is a test fake for MessageReader. Once its messages are
// exhausted it cancels the loop through Cancel.
type FakeReader struct {
	Messages []*consumer.Message
	Errs     []error
	Cancel   context.CancelFunc
	index    int
}

func (f *FakeReader) ReadMessage(ctx context.Context) (*consumer.Message, error) {
	if f.index >= len(f.Messages) {
		if f.Cancel != nil {
			f.Cancel()
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	msg := f.Messages[f.index]
	var err error
	if f.index < len(f.Errs) {
		err = f.Errs[f.index]
	}
	f.index++
	return msg, err
}

func (f *FakeReader) Close() error {
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// FakePublisher is a test fake for ViewPublisher.
type FakePublisher struct {
	mu    sync.Mutex
	Views []events.StationAndGroupSoh
	Kinds []publisher.Kind
}

func (f *FakePublisher) Publish(view events.StationAndGroupSoh, kind publisher.Kind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Views = append(f.Views, view)
	f.Kinds = append(f.Kinds, kind)
}

// PanickyStore wraps a store and panics when upserting PanicStation.
type PanickyStore struct {
	SohStore
	PanicStation string
}

func (p *PanickyStore) Upsert(rec events.StationSoh, isUpdateResponse bool) (bool, error) {
	if rec.StationName == p.PanicStation {
		panic("corrupt record")
	}
	return p.SohStore.Upsert(rec, isUpdateResponse)
}

// FakeMetrics is a test fake for MetricsRecorder.
type FakeMetrics struct {
	mu             sync.Mutex
	ReceivedCount  int
	ProcessedCount int
	ErrorCount     int
	CustomCounts   map[string]int
}

func NewFakeMetrics() *FakeMetrics {
	return &FakeMetrics{CustomCounts: make(map[string]int)}
}

func (f *FakeMetrics) RecordReceived() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReceivedCount++
}

func (f *FakeMetrics) RecordProcessed(_ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ProcessedCount++
}

func (f *FakeMetrics) RecordError() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ErrorCount++
}

func (f *FakeMetrics) IncrementCustom(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CustomCounts[name]++
}

var errDecode = errors.New("failed to decode SOH batch")
