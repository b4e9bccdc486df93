// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// The aggregation engine computes every metric on demand from the session
// and objective stores; nothing derived is persisted.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/cohort-metrics/internal/domain/attainment"
	"github.com/alem-hub/cohort-metrics/internal/domain/center"
	"github.com/alem-hub/cohort-metrics/internal/domain/objective"
	"github.com/alem-hub/cohort-metrics/internal/domain/session"
	"github.com/alem-hub/cohort-metrics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATION ENGINE
// Один движок для всех треков. Трек задаёт таксономию этапов, пару этапов
// удержания и стратегию "реализованного".
// ══════════════════════════════════════════════════════════════════════════════

// Engine вычисляет агрегаты, коэффициенты и сводки по запросу.
// Не хранит изменяемого состояния между вызовами.
type Engine struct {
	sessions   session.Repository
	objectives objective.Repository
	centers    center.Repository

	// cache - явный кэш агрегатов, nil по умолчанию.
	cache    attainment.AggregateCache
	cacheTTL time.Duration

	log *logger.Logger
}

// EngineOption настраивает Engine.
type EngineOption func(*Engine)

// WithAggregateCache включает явный кэш агрегатов. Инвалидация - на стороне
// записи сессий (command.RecordSessionHandler).
func WithAggregateCache(cache attainment.AggregateCache, ttl time.Duration) EngineOption {
	return func(e *Engine) {
		e.cache = cache
		e.cacheTTL = ttl
	}
}

// WithLogger задаёт логгер движка.
func WithLogger(log *logger.Logger) EngineOption {
	return func(e *Engine) {
		e.log = log
	}
}

// NewEngine создаёт движок агрегации.
func NewEngine(
	sessions session.Repository,
	objectives objective.Repository,
	centers center.Repository,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		sessions:   sessions,
		objectives: objectives,
		centers:    centers,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ──────────────────────────────────────────────────────────────────────────────
// Aggregate
// ──────────────────────────────────────────────────────────────────────────────

// Aggregate суммирует счётчики центра за год: один запрос на семейство и,
// если стратегия трека этого требует, один запрос по первому этапу.
func (e *Engine) Aggregate(ctx context.Context, centerID string, year int, track session.Track) (attainment.AggregateCounts, error) {
	spec, err := track.Spec()
	if err != nil {
		return attainment.AggregateCounts{}, err
	}

	key := attainment.CacheKey{Track: track, CenterID: centerID, Year: year}
	gen := attainment.NoGeneration
	if e.cache != nil {
		cached, g, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			e.log.Warn("aggregate cache read failed",
				logger.Track(track.String()), logger.CenterID(centerID), logger.Year(year), logger.Err(err))
		} else if ok {
			return cached, nil
		} else {
			gen = g
		}
	}

	var ic session.Counts
	if spec.HasInfoCollective() {
		ic, err = e.sessions.SumFamily(ctx, session.FamilyFilter{
			Track: track, Family: session.FamilyIC, CenterID: centerID, Year: year,
		})
		if err != nil {
			return attainment.AggregateCounts{}, fmt.Errorf("sum ic family: %w", err)
		}
	}

	workshop, err := e.sessions.SumFamily(ctx, session.FamilyFilter{
		Track: track, Family: session.FamilyWorkshop, CenterID: centerID, Year: year,
	})
	if err != nil {
		return attainment.AggregateCounts{}, fmt.Errorf("sum workshop family: %w", err)
	}

	var first session.Counts
	if spec.NeedsFirstStageSum() {
		first, err = e.sessions.SumStage(ctx, session.StageFilter{
			Track: track, Stage: spec.FirstStage(), CenterID: centerID, Year: year,
		})
		if err != nil {
			return attainment.AggregateCounts{}, fmt.Errorf("sum first stage: %w", err)
		}
	}

	agg := attainment.NewAggregateCounts(spec, centerID, year, ic, workshop, first)

	// Версия, прочитанная до запросов к хранилищу, отсекает заполнение,
	// если между ними прошла запись сессии.
	if e.cache != nil && gen != attainment.NoGeneration {
		if err := e.cache.Set(ctx, key, agg, gen, e.cacheTTL); err != nil {
			e.log.Warn("aggregate cache write failed",
				logger.Track(track.String()), logger.CenterID(centerID), logger.Year(year), logger.Err(err))
		}
	}

	return agg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Attainment
// ──────────────────────────────────────────────────────────────────────────────

// target возвращает годовую цель центра. Отсутствие цели - 0.
func (e *Engine) target(ctx context.Context, centerID string, year int) (int, bool, error) {
	if centerID == "" {
		return 0, false, nil
	}
	target, found, err := e.objectives.Get(ctx, centerID, year)
	if err != nil {
		return 0, false, fmt.Errorf("get objective: %w", err)
	}
	return target, found, nil
}

// AttainmentResult - достижение цели центром. ObjectiveConfigured позволяет
// отличить "цель не задана" от "цель равна нулю".
type AttainmentResult struct {
	CenterID            string        `json:"center"`
	Year                int           `json:"annee"`
	Track               session.Track `json:"track"`
	Target              int           `json:"objectif"`
	ObjectiveConfigured bool          `json:"objectif_configure"`
	Realized            int           `json:"realise"`
	TauxAtteinte        float64       `json:"taux_atteinte"`
	ResteAFaire         int           `json:"reste_a_faire"`
}

// Attainment вычисляет достижение цели центром за год.
func (e *Engine) Attainment(ctx context.Context, centerID string, year int, track session.Track) (AttainmentResult, error) {
	agg, err := e.Aggregate(ctx, centerID, year, track)
	if err != nil {
		return AttainmentResult{}, err
	}
	target, found, err := e.target(ctx, centerID, year)
	if err != nil {
		return AttainmentResult{}, err
	}
	return AttainmentResult{
		CenterID:            centerID,
		Year:                year,
		Track:               track,
		Target:              target,
		ObjectiveConfigured: found,
		Realized:            agg.Realized,
		TauxAtteinte:        attainment.Percent(agg.Realized, target),
		ResteAFaire:         attainment.Remaining(target, agg.Realized),
	}, nil
}

// TauxAtteinte = round(realized / target * 100, 1), 0 если цель 0 или не задана.
func (e *Engine) TauxAtteinte(ctx context.Context, centerID string, year int, track session.Track) (float64, error) {
	res, err := e.Attainment(ctx, centerID, year, track)
	if err != nil {
		return 0, err
	}
	return res.TauxAtteinte, nil
}

// ResteAFaire = max(target - realized, 0).
func (e *Engine) ResteAFaire(ctx context.Context, centerID string, year int, track session.Track) (int, error) {
	res, err := e.Attainment(ctx, centerID, year, track)
	if err != nil {
		return 0, err
	}
	return res.ResteAFaire, nil
}

// TauxRetention = round(final / initial * 100, 1) по присутствию на
// начальном и конечном этапах трека; 0 если на начальном этапе никого.
// Считается по суммам отдельных этапов, а не по Aggregate.
func (e *Engine) TauxRetention(ctx context.Context, centerID string, year int, track session.Track) (float64, error) {
	spec, err := track.Spec()
	if err != nil {
		return 0, err
	}

	initial, err := e.sessions.SumStage(ctx, session.StageFilter{
		Track: track, Stage: spec.RetentionFrom, CenterID: centerID, Year: year,
	})
	if err != nil {
		return 0, fmt.Errorf("sum retention initial stage: %w", err)
	}
	final, err := e.sessions.SumStage(ctx, session.StageFilter{
		Track: track, Stage: spec.RetentionTo, CenterID: centerID, Year: year,
	})
	if err != nil {
		return 0, fmt.Errorf("sum retention final stage: %w", err)
	}

	return attainment.Percent(final.Present, initial.Present), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Rollups
// ──────────────────────────────────────────────────────────────────────────────

// rollupScope - данные одного вызова сводки. Каждый агрегат центра
// вычисляется один раз за вызов; после возврата scope отбрасывается.
type rollupScope struct {
	year        int
	track       session.Track
	lines       []attainment.CenterLine
	departments map[string]string
}

// newRollupScope загружает цели года, считает агрегат каждого центра с целью
// и определяет департаменты центров.
func (e *Engine) newRollupScope(ctx context.Context, year int, track session.Track) (*rollupScope, error) {
	if _, err := track.Spec(); err != nil {
		return nil, err
	}

	objectives, err := e.objectives.ListByYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("list objectives: %w", err)
	}

	centers, err := e.centers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list centers: %w", err)
	}
	departments := make(map[string]string, len(centers))
	for _, c := range centers {
		departments[c.ID] = c.Department()
	}

	scope := &rollupScope{
		year:        year,
		track:       track,
		lines:       make([]attainment.CenterLine, 0, len(objectives)),
		departments: departments,
	}
	for _, o := range objectives {
		agg, err := e.Aggregate(ctx, o.CenterID, year, track)
		if err != nil {
			return nil, err
		}
		scope.lines = append(scope.lines, attainment.CenterLine{
			CenterID:   o.CenterID,
			Department: departments[o.CenterID],
			Target:     o.TargetValue,
			Realized:   agg.Realized,
		})
	}
	return scope, nil
}

func (s *rollupScope) departmentOf(centerID string) string {
	return s.departments[centerID]
}

func (s *rollupScope) byCenter() map[string]int {
	return attainment.ByCenter(s.lines)
}

func (s *rollupScope) byDepartment() map[string]int {
	return attainment.FoldByDepartment(s.byCenter(), s.departmentOf)
}

// ByCenter возвращает остаток до цели по каждому центру, у которого есть
// цель на этот год.
func (e *Engine) ByCenter(ctx context.Context, year int, track session.Track) (map[string]int, error) {
	scope, err := e.newRollupScope(ctx, year, track)
	if err != nil {
		return nil, err
	}
	return scope.byCenter(), nil
}

// ByDepartment сворачивает ByCenter по департаментам. Центры без
// департамента исключаются.
func (e *Engine) ByDepartment(ctx context.Context, year int, track session.Track) (map[string]int, error) {
	scope, err := e.newRollupScope(ctx, year, track)
	if err != nil {
		return nil, err
	}
	return scope.byDepartment(), nil
}

// GlobalTotal суммирует сырые цели и реализованные значения по центрам
// с целью и округляет итоговый процент один раз.
func (e *Engine) GlobalTotal(ctx context.Context, year int, track session.Track) (attainment.GlobalTotals, error) {
	scope, err := e.newRollupScope(ctx, year, track)
	if err != nil {
		return attainment.GlobalTotals{}, err
	}
	return attainment.Totals(scope.lines), nil
}
