package notification

import "github.com/medeiros-dev/reservation-notifier/internal/domain/port/offline"

func NewDispatchNotification(presence Presence, store offline.Store) (*Dispatcher, *DispatchNotificationHandler) {
	dispatcher := NewDispatcher(presence, store)
	handler := NewDispatchNotificationHandler(dispatcher)
	return dispatcher, handler
}
