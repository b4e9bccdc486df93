package query

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alem-hub/cohort-metrics/internal/domain/attainment"
	"github.com/alem-hub/cohort-metrics/internal/domain/center"
	"github.com/alem-hub/cohort-metrics/internal/domain/objective"
	"github.com/alem-hub/cohort-metrics/internal/domain/session"
	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
)

// fakeSessions is an in-memory session.Repository that counts sum queries.
type fakeSessions struct {
	mu          sync.Mutex
	records     map[string]*session.Record
	familyCalls int
	stageCalls  int
	err         error

	// beforeStageSum runs before every SumStage, outside the lock.
	beforeStageSum func()
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{records: make(map[string]*session.Record)}
}

func (f *fakeSessions) Save(_ context.Context, r *session.Record) error {
	if err := r.Prepare(time.Now()); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *r
	f.records[r.ID] = &cp
	return nil
}

func (f *fakeSessions) Get(_ context.Context, id string) (*session.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, shared.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeSessions) sum(match func(*session.Record) bool) session.Counts {
	var total session.Counts
	for _, r := range f.records {
		if match(r) {
			total = total.Add(r.Counts)
		}
	}
	return total
}

func (f *fakeSessions) SumFamily(_ context.Context, filter session.FamilyFilter) (session.Counts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.familyCalls++
	if f.err != nil {
		return session.Counts{}, f.err
	}
	return f.sum(func(r *session.Record) bool {
		return r.Track == filter.Track && r.Stage.Family() == filter.Family &&
			r.CenterID == filter.CenterID && r.Year() == filter.Year
	}), nil
}

func (f *fakeSessions) SumStage(_ context.Context, filter session.StageFilter) (session.Counts, error) {
	if f.beforeStageSum != nil {
		f.beforeStageSum()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stageCalls++
	if f.err != nil {
		return session.Counts{}, f.err
	}
	return f.sum(func(r *session.Record) bool {
		return r.Track == filter.Track && r.Stage == filter.Stage &&
			r.CenterID == filter.CenterID && r.Year() == filter.Year
	}), nil
}

func (f *fakeSessions) ListByCenterYear(_ context.Context, track session.Track, centerID string, year int) ([]*session.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*session.Record
	for _, r := range f.records {
		if r.Track == track && r.CenterID == centerID && r.Year() == year {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (f *fakeSessions) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.familyCalls, f.stageCalls = 0, 0
}

// fakeObjectives is an in-memory objective.Repository.
type fakeObjectives struct {
	rows map[string]*objective.AnnualObjective
}

func newFakeObjectives() *fakeObjectives {
	return &fakeObjectives{rows: make(map[string]*objective.AnnualObjective)}
}

func objKey(centerID string, year int) string {
	return fmt.Sprintf("%s/%d", centerID, year)
}

func (f *fakeObjectives) Get(_ context.Context, centerID string, year int) (int, bool, error) {
	o, ok := f.rows[objKey(centerID, year)]
	if !ok {
		return 0, false, nil
	}
	return o.TargetValue, true, nil
}

func (f *fakeObjectives) Upsert(_ context.Context, o *objective.AnnualObjective) error {
	if err := o.Validate(); err != nil {
		return err
	}
	cp := *o
	f.rows[objKey(o.CenterID, o.Year)] = &cp
	return nil
}

func (f *fakeObjectives) ListByYear(_ context.Context, year int) ([]*objective.AnnualObjective, error) {
	var out []*objective.AnnualObjective
	for _, o := range f.rows {
		if o.Year == year {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CenterID < out[j].CenterID })
	return out, nil
}

// fakeCenters is an in-memory center.Repository.
type fakeCenters struct {
	rows map[string]*center.Center
}

func newFakeCenters() *fakeCenters {
	return &fakeCenters{rows: make(map[string]*center.Center)}
}

func (f *fakeCenters) Upsert(_ context.Context, c *center.Center) error {
	cp := *c
	f.rows[c.ID] = &cp
	return nil
}

func (f *fakeCenters) Get(_ context.Context, id string) (*center.Center, error) {
	c, ok := f.rows[id]
	if !ok {
		return nil, shared.ErrCenterNotFound
	}
	return c, nil
}

func (f *fakeCenters) List(_ context.Context) ([]*center.Center, error) {
	out := make([]*center.Center, 0, len(f.rows))
	for _, c := range f.rows {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCenters) Delete(_ context.Context, id string) error {
	delete(f.rows, id)
	return nil
}

// fakeCache is an in-memory attainment.AggregateCache with per-(track, center)
// generations, like the Redis adapter.
type fakeCache struct {
	values map[attainment.CacheKey]attainment.AggregateCounts
	gens   map[string]attainment.Generation
	hits   int
	sets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		values: make(map[attainment.CacheKey]attainment.AggregateCounts),
		gens:   make(map[string]attainment.Generation),
	}
}

func genKey(track session.Track, centerID string) string {
	return string(track) + "/" + centerID
}

func (c *fakeCache) Get(_ context.Context, key attainment.CacheKey) (attainment.AggregateCounts, attainment.Generation, bool, error) {
	v, ok := c.values[key]
	if ok {
		c.hits++
	}
	return v, c.gens[genKey(key.Track, key.CenterID)], ok, nil
}

func (c *fakeCache) Set(_ context.Context, key attainment.CacheKey, value attainment.AggregateCounts, gen attainment.Generation, _ time.Duration) error {
	if c.gens[genKey(key.Track, key.CenterID)] != gen {
		return nil
	}
	c.sets++
	c.values[key] = value
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, keys ...attainment.CacheKey) error {
	for _, k := range keys {
		c.gens[genKey(k.Track, k.CenterID)]++
		delete(c.values, k)
	}
	return nil
}

func (c *fakeCache) InvalidateCenter(_ context.Context, centerID string) error {
	for _, track := range session.Tracks() {
		c.gens[genKey(track, centerID)]++
	}
	for k := range c.values {
		if k.CenterID == centerID {
			delete(c.values, k)
		}
	}
	return nil
}
