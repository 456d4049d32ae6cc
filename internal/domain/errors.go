package domain

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNoExpenses           = errors.New("no expenses recorded")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrMissingFields        = errors.New("required fields missing")
)
