package domain

import "time"

type User struct {
	ID                     int64
	Phone                  string
	FirstName              string
	LastName               string
	CountryCode            *string
	DefaultPaymentMethodID *int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// DisplayName is what canned replies call the user.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Phone
}
