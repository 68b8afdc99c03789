package domain

// Product — товар каталога, каким его возвращает сервис каталога.
// Источник истины по имени и актуальной цене живёт в каталоге; этот сервис
// использует цену только как снимок на момент валидации.
type Product struct {
	ID         string
	Name       string
	PriceMinor int64
}
