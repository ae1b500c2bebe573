package models

// All lists every persisted model in migration order
func All() []interface{} {
	return []interface{}{
		&User{},
		&Property{},
		&Unit{},
		&Invoice{},
		&Payment{},
		&Receipt{},
		&UserNotifPreference{},
		&ScheduledTask{},
		&ScheduledTaskHistory{},
	}
}
