package models

// All lists every model in migration order.
func All() []any {
	return []any{
		&User{},
		&Room{},
		&Question{},
		&GameSession{},
		&PlayerSession{},
		&Round{},
		&Answer{},
		&Vote{},
	}
}
