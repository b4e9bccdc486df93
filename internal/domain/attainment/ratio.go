// Package attainment содержит чистую арифметику агрегатов: защищённые
// отношения, округление, остаток до цели и свёртку по департаментам.
// Пакет не обращается к хранилищам.
package attainment

// Percent возвращает num/den*100, округлённое до одного знака (половина -
// вверх), или 0, если знаменатель не положителен. Округление выполняется в
// целых числах: точные половины вроде 23/80 = 28.75 дают 28.8.
func Percent(num, den int) float64 {
	if den <= 0 || num <= 0 {
		return 0
	}
	n, d := int64(num), int64(den)
	tenths := (2*n*1000 + d) / (2 * d)
	return float64(tenths) / 10
}

// Remaining возвращает max(target - realized, 0).
func Remaining(target, realized int) int {
	if realized >= target {
		return 0
	}
	return target - realized
}
