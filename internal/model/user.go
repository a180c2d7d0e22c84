package model

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserPublic — проекция пользователя для списка исполнителей (без хеша пароля).
type UserPublic struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (u *User) ToPublic() UserPublic {
	return UserPublic{ID: u.ID, Email: u.Email}
}
