package handler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/vaskular/vaskular-backend/internal/model"
	"github.com/vaskular/vaskular-backend/internal/queue"
	"github.com/vaskular/vaskular-backend/internal/repository"
)

// memStore is an in-memory ScoreStore.  Setting err makes every call fail
// with a storage error.
type memStore struct {
	mu      sync.Mutex
	records []*model.ScoreRecord
	err     error
}

func (m *memStore) Append(_ context.Context, userID string, c, o, s, f float64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	id := int64(len(m.records) + 1)
	m.records = append(m.records, &model.ScoreRecord{
		ID: id, UserID: userID, Circulation: c, Oxygen: o, SwellingRisk: s, Fatigue: f,
		Timestamp: time.Date(2024, 1, 1, 0, 0, int(id), 0, time.UTC),
	})
	return id, nil
}

func (m *memStore) Recent(_ context.Context, userID string, limit int) ([]*model.ScoreRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*model.ScoreRecord
	for _, r := range m.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) == 0 {
		return nil, repository.ErrNotFound
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) Latest(ctx context.Context, userID string) (*model.ScoreRecord, error) {
	recs, err := m.Recent(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	return recs[0], nil
}

var errStorage = errors.Join(repository.ErrStorageUnavailable, errors.New("disk I/O error"))

// stubAdvisor records the record it was asked about.
type stubAdvisor struct {
	plan string
	err  error
	got  *model.ScoreRecord
}

func (s *stubAdvisor) Advise(_ context.Context, rec *model.ScoreRecord) (string, error) {
	s.got = rec
	return s.plan, s.err
}

type recordingPublisher struct {
	events []queue.ScoresRecordedEvent
	err    error
}

func (p *recordingPublisher) PublishScoresRecorded(_ context.Context, ev queue.ScoresRecordedEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

type recordingCache struct {
	paths []string
	err   error
}

func (c *recordingCache) Invalidate(_ context.Context, paths ...string) error {
	c.paths = append(c.paths, paths...)
	return c.err
}
