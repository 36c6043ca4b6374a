package entities

import "errors"

var ErrNotAuthenticated = errors.New("not authenticated")

type User struct {
	ID       string
	Email    string
	Name     string
	Phone    string
	Role     string
	Language string
}
