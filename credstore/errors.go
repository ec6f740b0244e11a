package credstore

import "fmt"

type (
	UserExists struct {
		Username string
	}

	UserNotFound struct {
		Username string
	}

	SessionNotFound struct{}
)

func (u UserExists) Error() string {
	return fmt.Sprintf("user %v already exists", u.Username)
}

func (u UserNotFound) Error() string {
	return fmt.Sprintf("user %v not found", u.Username)
}

func (SessionNotFound) Error() string {
	return "session not found"
}
