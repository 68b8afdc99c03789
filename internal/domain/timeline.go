package domain

import "time"

// TimelineEvent описывает событие в жизненном цикле заказа.
// Таймлайн — append-only журнал: события не редактируются и не удаляются.
type TimelineEvent struct {
	OrderID string
	// Type — имя события, например OrderCreated или OrderStatusChanged.
	Type string
	// Reason — статус заказа, связанный с событием.
	Reason   string
	Occurred time.Time
}

// Before задаёт хронологический порядок событий таймлайна.
func (e TimelineEvent) Before(other TimelineEvent) bool {
	return e.Occurred.Before(other.Occurred)
}
