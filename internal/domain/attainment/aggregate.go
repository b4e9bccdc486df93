package attainment

import (
	"context"
	"time"

	"github.com/alem-hub/cohort-metrics/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE COUNTS
// ══════════════════════════════════════════════════════════════════════════════

// AggregateCounts - суммы счётчиков центра за год по семействам этапов
// и "реализованное" значение трека. Не сохраняется, пересчитывается на каждый вызов.
// Имена полей не являются внешним контрактом.
type AggregateCounts struct {
	Track    session.Track  `json:"track"`
	CenterID string         `json:"center_id"`
	Year     int            `json:"year"`
	IC       session.Counts `json:"ic"`
	Workshop session.Counts `json:"workshop"`

	// FirstStage - суммы первого этапа трека.
	FirstStage session.Counts `json:"first_stage"`

	// Realized - значение, сравниваемое с годовой целью.
	Realized int `json:"realized"`

	// PresenceFamily - семейство, по которому считается taux_presence трека.
	PresenceFamily session.Family `json:"presence_family"`
}

// NewAggregateCounts собирает агрегат из сумм семейств. firstStage должен
// содержать суммы первого этапа, если трек их требует (NeedsFirstStageSum);
// если первый этап - information collective, они совпадают с суммой IC.
func NewAggregateCounts(spec session.TrackSpec, centerID string, year int, ic, workshop, firstStage session.Counts) AggregateCounts {
	if spec.FirstStage().Family() == session.FamilyIC {
		firstStage = ic
	}
	return AggregateCounts{
		Track:          spec.Track,
		CenterID:       centerID,
		Year:           year,
		IC:             ic,
		Workshop:       workshop,
		FirstStage:     firstStage,
		Realized:       spec.Realized.Project(ic, workshop, firstStage),
		PresenceFamily: spec.PresenceFamily(),
	}
}

// TauxPrescription = prescriptions / places_opened * 100.
func (a AggregateCounts) TauxPrescription() float64 {
	return Percent(a.IC.Prescriptions, a.IC.PlacesOpened)
}

// TauxPresenceIC = presents / prescriptions * 100 (семейство IC).
func (a AggregateCounts) TauxPresenceIC() float64 {
	return Percent(a.IC.Present, a.IC.Prescriptions)
}

// TauxPresenceWorkshop = presents / enrolled * 100 (семейство мастерских).
func (a AggregateCounts) TauxPresenceWorkshop() float64 {
	return Percent(a.Workshop.Present, a.Workshop.Enrolled)
}

// TauxPresence - присутствие по семейству первого этапа трека.
func (a AggregateCounts) TauxPresence() float64 {
	if a.PresenceFamily == session.FamilyIC {
		return a.TauxPresenceIC()
	}
	return a.TauxPresenceWorkshop()
}

// TauxAdhesion = adhesions / presents * 100 (семейство IC).
func (a AggregateCounts) TauxAdhesion() float64 {
	return Percent(a.IC.Adhesions, a.IC.Present)
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE CACHE
// ══════════════════════════════════════════════════════════════════════════════

// CacheKey - ключ явного кэша агрегатов.
type CacheKey struct {
	Track    session.Track
	CenterID string
	Year     int
}

// KeyFor возвращает ключ кэша для записи сессии.
func KeyFor(r *session.Record) CacheKey {
	return CacheKey{Track: r.Track, CenterID: r.CenterID, Year: r.Year()}
}

// Generation - версия пары (трек, центр) в кэше. Любая инвалидация ключа
// пары увеличивает её.
type Generation int64

// NoGeneration означает, что заполнять кэш после промаха нельзя.
const NoGeneration Generation = -1

// AggregateCache - явный кэш агрегатов. По умолчанию не используется.
// Инвалидация выполняется только извне, стороной записи сессий.
//
// Заполнение условное: Get на промахе возвращает текущую версию, и Set
// записывает значение, только если версия не изменилась. Так агрегат,
// прочитанный из хранилища до записи сессии, не переживёт её инвалидацию.
type AggregateCache interface {
	Get(ctx context.Context, key CacheKey) (AggregateCounts, Generation, bool, error)
	Set(ctx context.Context, key CacheKey, value AggregateCounts, gen Generation, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...CacheKey) error

	// InvalidateCenter удаляет все ключи центра (все треки и годы).
	InvalidateCenter(ctx context.Context, centerID string) error
}
