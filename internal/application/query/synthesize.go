package query

import (
	"context"

	"github.com/alem-hub/cohort-metrics/internal/domain/attainment"
	"github.com/alem-hub/cohort-metrics/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNTHESIS REPORTER
// Единственный контракт, на который может опираться граница экспорта.
// Набор ключей фиксирован.
// ══════════════════════════════════════════════════════════════════════════════

// Ключи сводки по центру.
const (
	KeyCenter           = "center"
	KeyAnnee            = "annee"
	KeyObjectif         = "objectif"
	KeyRealise          = "realise"
	KeyTauxPrescription = "taux_prescription"
	KeyTauxPresence     = "taux_presence"
	KeyTauxAdhesion     = "taux_adhesion"
	KeyTauxAtteinte     = "taux_atteinte"
	KeyTauxRetention    = "taux_retention"
	KeyResteAFaire      = "reste_a_faire"
)

// Ключи глобальной сводки.
const (
	KeyObjectifTotal     = "objectif_total"
	KeyRealiseTotal      = "realise_total"
	KeyTauxAtteinteTotal = "taux_atteinte_total"
	KeyResteAFaireTotal  = "reste_a_faire_total"
	KeyParCentre         = "par_centre"
	KeyParDepartement    = "par_departement"
)

// CenterSynthesis - сводка по одному центру.
type CenterSynthesis struct {
	Center           string  `json:"center"`
	Annee            int     `json:"annee"`
	Objectif         int     `json:"objectif"`
	Realise          int     `json:"realise"`
	TauxPrescription float64 `json:"taux_prescription"`
	TauxPresence     float64 `json:"taux_presence"`
	TauxAdhesion     float64 `json:"taux_adhesion"`
	TauxAtteinte     float64 `json:"taux_atteinte"`
	TauxRetention    float64 `json:"taux_retention"`
	ResteAFaire      int     `json:"reste_a_faire"`
}

// Map возвращает сводку в виде словаря с фиксированным набором ключей.
func (s CenterSynthesis) Map() map[string]any {
	return map[string]any{
		KeyCenter:           s.Center,
		KeyAnnee:            s.Annee,
		KeyObjectif:         s.Objectif,
		KeyRealise:          s.Realise,
		KeyTauxPrescription: s.TauxPrescription,
		KeyTauxPresence:     s.TauxPresence,
		KeyTauxAdhesion:     s.TauxAdhesion,
		KeyTauxAtteinte:     s.TauxAtteinte,
		KeyTauxRetention:    s.TauxRetention,
		KeyResteAFaire:      s.ResteAFaire,
	}
}

// GlobalSynthesis - сводка по всем центрам с целью на год.
type GlobalSynthesis struct {
	Annee             int            `json:"annee"`
	ObjectifTotal     int            `json:"objectif_total"`
	RealiseTotal      int            `json:"realise_total"`
	TauxAtteinteTotal float64        `json:"taux_atteinte_total"`
	ResteAFaireTotal  int            `json:"reste_a_faire_total"`
	ParCentre         map[string]int `json:"par_centre"`
	ParDepartement    map[string]int `json:"par_departement"`
}

// Map возвращает сводку в виде словаря с фиксированным набором ключей.
func (s GlobalSynthesis) Map() map[string]any {
	return map[string]any{
		KeyAnnee:             s.Annee,
		KeyObjectifTotal:     s.ObjectifTotal,
		KeyRealiseTotal:      s.RealiseTotal,
		KeyTauxAtteinteTotal: s.TauxAtteinteTotal,
		KeyResteAFaireTotal:  s.ResteAFaireTotal,
		KeyParCentre:         s.ParCentre,
		KeyParDepartement:    s.ParDepartement,
	}
}

// Synthesize строит сводку: по центру, если centerID задан, иначе глобальную.
func (e *Engine) Synthesize(ctx context.Context, centerID *string, year int, track session.Track) (map[string]any, error) {
	if centerID != nil {
		s, err := e.SynthesizeCenter(ctx, *centerID, year, track)
		if err != nil {
			return nil, err
		}
		return s.Map(), nil
	}

	s, err := e.SynthesizeGlobal(ctx, year, track)
	if err != nil {
		return nil, err
	}
	return s.Map(), nil
}

// SynthesizeCenter строит сводку по одному центру.
func (e *Engine) SynthesizeCenter(ctx context.Context, centerID string, year int, track session.Track) (CenterSynthesis, error) {
	agg, err := e.Aggregate(ctx, centerID, year, track)
	if err != nil {
		return CenterSynthesis{}, err
	}
	target, _, err := e.target(ctx, centerID, year)
	if err != nil {
		return CenterSynthesis{}, err
	}
	retention, err := e.TauxRetention(ctx, centerID, year, track)
	if err != nil {
		return CenterSynthesis{}, err
	}

	return CenterSynthesis{
		Center:           centerID,
		Annee:            year,
		Objectif:         target,
		Realise:          agg.Realized,
		TauxPrescription: agg.TauxPrescription(),
		TauxPresence:     agg.TauxPresence(),
		TauxAdhesion:     agg.TauxAdhesion(),
		TauxAtteinte:     attainment.Percent(agg.Realized, target),
		TauxRetention:    retention,
		ResteAFaire:      attainment.Remaining(target, agg.Realized),
	}, nil
}

// SynthesizeGlobal строит глобальную сводку за один проход по центрам.
func (e *Engine) SynthesizeGlobal(ctx context.Context, year int, track session.Track) (GlobalSynthesis, error) {
	scope, err := e.newRollupScope(ctx, year, track)
	if err != nil {
		return GlobalSynthesis{}, err
	}

	totals := attainment.Totals(scope.lines)
	return GlobalSynthesis{
		Annee:             year,
		ObjectifTotal:     totals.ObjectiveTotal,
		RealiseTotal:      totals.RealizedTotal,
		TauxAtteinteTotal: totals.AttainmentPct,
		ResteAFaireTotal:  totals.RemainingTotal,
		ParCentre:         scope.byCenter(),
		ParDepartement:    scope.byDepartment(),
	}, nil
}
