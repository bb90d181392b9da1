package sendnotification

// SendNotificationInputDTO is the body of POST /api/v1/notifications.
type SendNotificationInputDTO struct {
	Recipient   string `json:"recipient" binding:"required"`
	DisplayName string `json:"display_name"`
	Room        string `json:"room"`
	Date        string `json:"date"`
	Weekday     string `json:"weekday"`
	TimeSlot    string `json:"time_slot"`
	Kind        string `json:"kind" binding:"required"`
	Message     string `json:"message"`
}

type SendNotificationOutputDTO struct {
	Route     string `json:"route"`
	Attempted int    `json:"attempted"`
	Failed    int    `json:"failed"`
}
