// Package session содержит доменную модель учёта посещаемости: сессии
// (information collective и пронумерованные мастерские), треки программ и
// таксономию этапов каждого трека.
package session

import (
	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STAGES
// ══════════════════════════════════════════════════════════════════════════════

// Stage - этап программы, к которому относится сессия.
type Stage string

const (
	StageInfoCollective Stage = "info_collective"
	StageWorkshop1      Stage = "workshop_1"
	StageWorkshop2      Stage = "workshop_2"
	StageWorkshop3      Stage = "workshop_3"
	StageWorkshop4      Stage = "workshop_4"
	StageWorkshop5      Stage = "workshop_5"
	StageWorkshop6      Stage = "workshop_6"
	StageOther          Stage = "other"
)

// allStages - все известные этапы в порядке прохождения.
var allStages = []Stage{
	StageInfoCollective,
	StageWorkshop1,
	StageWorkshop2,
	StageWorkshop3,
	StageWorkshop4,
	StageWorkshop5,
	StageWorkshop6,
	StageOther,
}

// IsValid проверяет, что этап известен.
func (s Stage) IsValid() bool {
	for _, st := range allStages {
		if st == s {
			return true
		}
	}
	return false
}

// Family возвращает семейство полей, к которому относится этап.
func (s Stage) Family() Family {
	if s == StageInfoCollective {
		return FamilyIC
	}
	return FamilyWorkshop
}

// String возвращает строковое представление этапа.
func (s Stage) String() string {
	return string(s)
}

// ParseStage разбирает этап из строки.
func ParseStage(raw string) (Stage, error) {
	s := Stage(raw)
	if !s.IsValid() {
		return "", shared.ErrUnknownStage
	}
	return s, nil
}

// Family - семейство полей счётчиков.
// IC: places_opened, prescriptions, present, absent, adhesions.
// Workshop: enrolled, present, absent.
type Family string

const (
	FamilyIC       Family = "ic"
	FamilyWorkshop Family = "workshop"
)

// Stages возвращает этапы, входящие в семейство.
func (f Family) Stages() []Stage {
	if f == FamilyIC {
		return []Stage{StageInfoCollective}
	}
	return []Stage{
		StageWorkshop1, StageWorkshop2, StageWorkshop3,
		StageWorkshop4, StageWorkshop5, StageWorkshop6,
		StageOther,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REALIZED STRATEGIES
// ══════════════════════════════════════════════════════════════════════════════

// RealizedStrategy - именованная стратегия вычисления "реализованного" значения,
// с которым сравнивается годовая цель. Треки используют разные стратегии,
// и они намеренно не унифицированы.
type RealizedStrategy string

const (
	// RealizedFirstStagePresence - только присутствующие на первом этапе трека.
	RealizedFirstStagePresence RealizedStrategy = "first_stage_presence"

	// RealizedAllStagesPresence - присутствующие на всех этапах вместе
	// (семейство IC + семейство мастерских).
	RealizedAllStagesPresence RealizedStrategy = "all_stages_presence"
)

// Project вычисляет реализованное значение из сумм семейств и суммы первого этапа.
func (r RealizedStrategy) Project(ic, workshop, firstStage Counts) int {
	switch r {
	case RealizedAllStagesPresence:
		return ic.Present + workshop.Present
	case RealizedFirstStagePresence:
		return firstStage.Present
	default:
		return 0
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TRACKS
// ══════════════════════════════════════════════════════════════════════════════

// Track - параллельная программа. Каждый трек несёт свою таксономию этапов,
// пару этапов для удержания и свою стратегию "реализованного".
type Track string

const (
	TrackPrepa     Track = "prepa"
	TrackInsertion Track = "insertion"
	TrackAteliers  Track = "ateliers"
)

// TrackSpec описывает трек.
type TrackSpec struct {
	// Track - ключ трека.
	Track Track

	// Stages - этапы трека в порядке прохождения. Первый элемент - первый этап.
	Stages []Stage

	// RetentionFrom / RetentionTo - начальный и конечный этапы для удержания.
	RetentionFrom Stage
	RetentionTo   Stage

	// Realized - стратегия "реализованного".
	Realized RealizedStrategy
}

var trackSpecs = map[Track]TrackSpec{
	TrackPrepa: {
		Track: TrackPrepa,
		Stages: []Stage{
			StageInfoCollective,
			StageWorkshop1, StageWorkshop2, StageWorkshop3,
			StageWorkshop4, StageWorkshop5, StageWorkshop6,
			StageOther,
		},
		RetentionFrom: StageWorkshop1,
		RetentionTo:   StageWorkshop6,
		Realized:      RealizedAllStagesPresence,
	},
	TrackInsertion: {
		Track: TrackInsertion,
		Stages: []Stage{
			StageInfoCollective,
			StageWorkshop1, StageWorkshop2, StageWorkshop3, StageWorkshop4,
			StageOther,
		},
		RetentionFrom: StageWorkshop1,
		RetentionTo:   StageWorkshop4,
		Realized:      RealizedFirstStagePresence,
	},
	TrackAteliers: {
		Track: TrackAteliers,
		Stages: []Stage{
			StageWorkshop1, StageWorkshop2, StageWorkshop3,
			StageWorkshop4, StageWorkshop5, StageWorkshop6,
			StageOther,
		},
		RetentionFrom: StageWorkshop1,
		RetentionTo:   StageWorkshop6,
		Realized:      RealizedFirstStagePresence,
	},
}

// Tracks возвращает все известные треки в стабильном порядке.
func Tracks() []Track {
	return []Track{TrackPrepa, TrackInsertion, TrackAteliers}
}

// ParseTrack разбирает трек из строки.
func ParseTrack(raw string) (Track, error) {
	t := Track(raw)
	if _, ok := trackSpecs[t]; !ok {
		return "", shared.ErrUnknownTrack
	}
	return t, nil
}

// IsValid проверяет, что трек известен.
func (t Track) IsValid() bool {
	_, ok := trackSpecs[t]
	return ok
}

// Spec возвращает описание трека.
func (t Track) Spec() (TrackSpec, error) {
	spec, ok := trackSpecs[t]
	if !ok {
		return TrackSpec{}, shared.ErrUnknownTrack
	}
	return spec, nil
}

// String возвращает строковое представление трека.
func (t Track) String() string {
	return string(t)
}

// FirstStage возвращает первый этап трека.
func (s TrackSpec) FirstStage() Stage {
	return s.Stages[0]
}

// HasStage проверяет, входит ли этап в таксономию трека.
func (s TrackSpec) HasStage(stage Stage) bool {
	for _, st := range s.Stages {
		if st == stage {
			return true
		}
	}
	return false
}

// HasInfoCollective возвращает true, если трек начинается с information collective.
func (s TrackSpec) HasInfoCollective() bool {
	return s.HasStage(StageInfoCollective)
}

// PresenceFamily - семейство, по которому считается taux_presence трека:
// семейство первого этапа.
func (s TrackSpec) PresenceFamily() Family {
	return s.FirstStage().Family()
}

// NeedsFirstStageSum возвращает true, если стратегия требует отдельной суммы
// по первому этапу (сумма семейства её не покрывает).
func (s TrackSpec) NeedsFirstStageSum() bool {
	return s.Realized == RealizedFirstStagePresence && s.FirstStage().Family() != FamilyIC
}
