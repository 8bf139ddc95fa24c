package model

import "time"

// Subscriber はニュースレターの配信先を表す。
// (email, user) の組はユーザー内で一意。
type Subscriber struct {
	ID        string
	UserID    string
	Email     string
	Name      string
	IsActive  bool
	CreatedAt time.Time
}
