package attainment

import "sort"

// ══════════════════════════════════════════════════════════════════════════════
// ROLLUPS
// ══════════════════════════════════════════════════════════════════════════════

// CenterLine - сырые входы одного центра для сводок: цель и реализованное.
type CenterLine struct {
	CenterID   string
	Department string
	Target     int
	Realized   int
}

// Remaining возвращает остаток до цели центра.
func (l CenterLine) Remaining() int {
	return Remaining(l.Target, l.Realized)
}

// GlobalTotals - глобальная сводка по году и треку.
type GlobalTotals struct {
	ObjectiveTotal int     `json:"objectif_total"`
	RealizedTotal  int     `json:"realise_total"`
	AttainmentPct  float64 `json:"taux_atteinte_total"`
	RemainingTotal int     `json:"reste_a_faire_total"`
}

// ByCenter возвращает остаток до цели по каждому центру.
func ByCenter(lines []CenterLine) map[string]int {
	out := make(map[string]int, len(lines))
	for _, l := range lines {
		out[l.CenterID] = l.Remaining()
	}
	return out
}

// FoldByDepartment сворачивает значения по центрам в значения по департаментам.
// Центры без департамента не учитываются. Сумма значений центров департамента
// равна значению департамента по построению.
func FoldByDepartment(byCenter map[string]int, departmentOf func(centerID string) string) map[string]int {
	out := make(map[string]int)
	for centerID, v := range byCenter {
		dept := departmentOf(centerID)
		if dept == "" {
			continue
		}
		out[dept] += v
	}
	return out
}

// Totals суммирует сырые цели и реализованные значения, затем округляет
// отношение один раз.
func Totals(lines []CenterLine) GlobalTotals {
	var t GlobalTotals
	for _, l := range lines {
		t.ObjectiveTotal += l.Target
		t.RealizedTotal += l.Realized
	}
	t.AttainmentPct = Percent(t.RealizedTotal, t.ObjectiveTotal)
	t.RemainingTotal = Remaining(t.ObjectiveTotal, t.RealizedTotal)
	return t
}

// SortedKeys возвращает ключи в лексикографическом порядке.
func SortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
