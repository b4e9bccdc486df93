package command

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/cohort-metrics/internal/domain/attainment"
	"github.com/alem-hub/cohort-metrics/internal/domain/center"
	"github.com/alem-hub/cohort-metrics/internal/domain/objective"
	"github.com/alem-hub/cohort-metrics/internal/domain/session"
	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
)

type memSessions struct {
	records map[string]*session.Record
	saveErr error
}

func newMemSessions() *memSessions {
	return &memSessions{records: make(map[string]*session.Record)}
}

func (m *memSessions) Save(_ context.Context, r *session.Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if err := r.Prepare(time.Now().UTC()); err != nil {
		return err
	}
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *memSessions) Get(_ context.Context, id string) (*session.Record, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, shared.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memSessions) SumFamily(context.Context, session.FamilyFilter) (session.Counts, error) {
	return session.Counts{}, nil
}

func (m *memSessions) SumStage(context.Context, session.StageFilter) (session.Counts, error) {
	return session.Counts{}, nil
}

func (m *memSessions) ListByCenterYear(context.Context, session.Track, string, int) ([]*session.Record, error) {
	return nil, nil
}

type memObjectives struct {
	rows map[string]*objective.AnnualObjective
}

func newMemObjectives() *memObjectives {
	return &memObjectives{rows: make(map[string]*objective.AnnualObjective)}
}

func (m *memObjectives) key(centerID string, year int) string {
	return fmt.Sprintf("%s/%d", centerID, year)
}

func (m *memObjectives) Get(_ context.Context, centerID string, year int) (int, bool, error) {
	o, ok := m.rows[m.key(centerID, year)]
	if !ok {
		return 0, false, nil
	}
	return o.TargetValue, true, nil
}

func (m *memObjectives) Upsert(_ context.Context, o *objective.AnnualObjective) error {
	cp := *o
	m.rows[m.key(o.CenterID, o.Year)] = &cp
	return nil
}

func (m *memObjectives) ListByYear(context.Context, int) ([]*objective.AnnualObjective, error) {
	return nil, nil
}

type memCenters struct {
	rows map[string]*center.Center
}

func newMemCenters() *memCenters {
	return &memCenters{rows: make(map[string]*center.Center)}
}

func (m *memCenters) Upsert(_ context.Context, c *center.Center) error {
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memCenters) Get(_ context.Context, id string) (*center.Center, error) {
	c, ok := m.rows[id]
	if !ok {
		return nil, shared.ErrCenterNotFound
	}
	return c, nil
}

func (m *memCenters) List(context.Context) ([]*center.Center, error) {
	return nil, nil
}

func (m *memCenters) Delete(_ context.Context, id string) error {
	if _, ok := m.rows[id]; !ok {
		return shared.ErrCenterNotFound
	}
	delete(m.rows, id)
	return nil
}

type recordingCache struct {
	invalidated []attainment.CacheKey
	centers     []string
}

func (c *recordingCache) Get(context.Context, attainment.CacheKey) (attainment.AggregateCounts, attainment.Generation, bool, error) {
	return attainment.AggregateCounts{}, 0, false, nil
}

func (c *recordingCache) Set(context.Context, attainment.CacheKey, attainment.AggregateCounts, attainment.Generation, time.Duration) error {
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, keys ...attainment.CacheKey) error {
	c.invalidated = append(c.invalidated, keys...)
	return nil
}

func (c *recordingCache) InvalidateCenter(_ context.Context, centerID string) error {
	c.centers = append(c.centers, centerID)
	return nil
}
