package service

import (
	"context"
	"sync"
	"time"

	"lpr-capture-service/internal/domain/lpr"
)

// fakeStore is an in-memory DetectionStore honoring the same contracts as
// the real repository: unique event_id, ErrAlreadyStored on duplicate
// insert, and upserts that keep a resolved owner_email over the sentinel.
type fakeStore struct {
	mu          sync.Mutex
	records     map[string]*lpr.PlateDetectionRecord
	owners      map[string]string
	writeErrors []lpr.WriteError

	insertErr     error
	upsertErr     error
	ownerErr      error
	existsErr     error
	writeErrorErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: map[string]*lpr.PlateDetectionRecord{},
		owners:  map[string]string{},
	}
}

func (s *fakeStore) ExistsByEventID(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.records[eventID]
	return ok, nil
}

func (s *fakeStore) Insert(_ context.Context, rec *lpr.PlateDetectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	if _, ok := s.records[rec.EventID]; ok {
		return lpr.ErrAlreadyStored
	}
	clone := *rec
	s.records[rec.EventID] = &clone
	return nil
}

func (s *fakeStore) Upsert(_ context.Context, rec *lpr.PlateDetectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	clone := *rec
	if existing, ok := s.records[rec.EventID]; ok && rec.OwnerEmail == lpr.OwnerUnresolved {
		clone.OwnerEmail = existing.OwnerEmail
	}
	s.records[rec.EventID] = &clone
	return nil
}

func (s *fakeStore) OwnerEmail(_ context.Context, plate string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownerErr != nil {
		return "", s.ownerErr
	}
	return s.owners[plate], nil
}

func (s *fakeStore) NewestDetectionTime(_ context.Context) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var newest *time.Time
	for _, rec := range s.records {
		ts := rec.Timestamp
		if newest == nil || ts.After(*newest) {
			newest = &ts
		}
	}
	return newest, nil
}

func (s *fakeStore) RecordWriteError(_ context.Context, we lpr.WriteError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErrorErr != nil {
		return s.writeErrorErr
	}
	s.writeErrors = append(s.writeErrors, we)
	return nil
}

func (s *fakeStore) get(eventID string) *lpr.PlateDetectionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[eventID]
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// fakePlatform scripts platform behavior per call.
type fakePlatform struct {
	mu sync.Mutex

	cameras     []lpr.Camera
	connectErrs []error

	batches    [][]lpr.DetectionEvent
	fetchSince []time.Time
	fetchErrs  []error

	subscribeErr error
	subs         []chan lpr.DetectionEvent

	connectCalls int
	closeCalls   int
}

func (p *fakePlatform) Connect(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connectCalls++
	if len(p.connectErrs) > 0 {
		err := p.connectErrs[0]
		p.connectErrs = p.connectErrs[1:]
		return err
	}
	return nil
}

func (p *fakePlatform) Cameras() []lpr.Camera {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cameras
}

func (p *fakePlatform) FetchEvents(_ context.Context, since time.Time, _ int) ([]lpr.DetectionEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchSince = append(p.fetchSince, since)
	if len(p.fetchErrs) > 0 {
		err := p.fetchErrs[0]
		p.fetchErrs = p.fetchErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(p.batches) == 0 {
		return nil, nil
	}
	batch := p.batches[0]
	p.batches = p.batches[1:]
	return batch, nil
}

func (p *fakePlatform) Subscribe(context.Context) (<-chan lpr.DetectionEvent, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.subscribeErr != nil {
		return nil, nil, p.subscribeErr
	}
	if len(p.subs) == 0 {
		return nil, nil, lpr.ErrPushUnsupported
	}
	ch := p.subs[0]
	p.subs = p.subs[1:]
	return ch, func() {}, nil
}

func (p *fakePlatform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCalls++
	return nil
}

// fakeClock advances virtual time on every Sleep and can run a hook per
// sleep (used to cancel the loop after N iterations).
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(n int)
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	n := len(c.sleeps)
	hook := c.onSleep
	c.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return ctx.Err()
}
