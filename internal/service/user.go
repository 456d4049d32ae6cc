package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/finzap/finzap/internal/config"
	"github.com/finzap/finzap/internal/domain"
)

type UserService struct {
	users  UserStore
	ledger LedgerStore
}

func NewUserService(users UserStore, ledger LedgerStore) *UserService {
	return &UserService{users: users, ledger: ledger}
}

// FindOrCreate resolves a user by phone number, creating it on first
// contact. New users get the default category and payment method sets; the
// country code is derived from the phone number on a best-effort basis.
func (s *UserService) FindOrCreate(ctx context.Context, phone, fullName string) (*domain.User, bool, error) {
	user, err := s.users.GetByPhone(ctx, phone)
	if err == nil {
		// Backfill the name if the contact block finally carried one.
		if fullName != "" && user.FirstName == "" {
			first, last := splitName(fullName)
			if err := s.users.UpdateName(ctx, user.ID, first, last); err != nil {
				slog.Warn("backfill user name", "error", err, "user_id", user.ID)
			} else {
				user.FirstName, user.LastName = first, last
			}
		}
		return user, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, fmt.Errorf("find user: %w", err)
	}

	first, last := splitName(fullName)
	user, err = s.users.Create(ctx, phone, first, last, countryFromPhone(phone))
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	slog.Info("new user created", "user_id", user.ID, "phone", phone)

	if err := s.seedDefaults(ctx, user); err != nil {
		return nil, false, fmt.Errorf("seed defaults: %w", err)
	}
	return user, true, nil
}

func (s *UserService) seedDefaults(ctx context.Context, user *domain.User) error {
	for _, name := range config.DefaultCategories {
		if _, err := s.ledger.GetOrCreateCategory(ctx, user.ID, name); err != nil {
			return err
		}
	}
	for i, pm := range config.DefaultPaymentMethods {
		method, err := s.ledger.GetOrCreatePaymentMethod(ctx, user.ID, pm.Name, pm.DueDay)
		if err != nil {
			return err
		}
		if i == 0 {
			if err := s.users.SetDefaultPaymentMethod(ctx, user.ID, method.ID); err != nil {
				return err
			}
			user.DefaultPaymentMethodID = &method.ID
		}
	}
	return nil
}

func splitName(fullName string) (first, last string) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return "", ""
	}
	parts := strings.SplitN(fullName, " ", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

// countryFromPhone derives the ISO 3166-1 alpha-2 region from the sender
// phone number. Parse failures are non-fatal and leave the country unset.
func countryFromPhone(phone string) *string {
	num, err := phonenumbers.Parse("+"+phone, "")
	if err != nil {
		slog.Warn("could not parse phone number", "phone", phone)
		return nil
	}
	region := phonenumbers.GetRegionCodeForNumber(num)
	if region == "" || region == "ZZ" {
		return nil
	}
	return &region
}
