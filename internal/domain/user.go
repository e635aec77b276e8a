package domain

import (
	"fmt"
	"strings"
)

// Role — закрытый набор ролей запрашивающей стороны.
type Role string

const (
	// RoleAdmin — неограниченный доступ ко всем заказам.
	RoleAdmin Role = "Admin"
	// RoleUser — доступ только к собственным заказам.
	RoleUser Role = "User"
	// RoleGuest — только создание заказа и эфемерная корзина.
	RoleGuest Role = "Guest"
)

// ParseRole разбирает строку роли без учёта регистра. Неизвестные значения отклоняются.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin":
		return RoleAdmin, nil
	case "user":
		return RoleUser, nil
	case "guest":
		return RoleGuest, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
}

// Valid проверяет, что роль входит в закрытый набор.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleGuest:
		return true
	default:
		return false
	}
}

// GuestIDPrefix отделяет ID гостевых сессий от ID зарегистрированных пользователей.
const GuestIDPrefix = "guest:"

// GuestID переводит идентификатор сессии в пространство имён гостей.
// Уже переведённый идентификатор возвращается без изменений.
func GuestID(session string) string {
	if strings.HasPrefix(session, GuestIDPrefix) {
		return session
	}
	return GuestIDPrefix + session
}

// IsGuestID сообщает, что id принадлежит гостевой сессии.
func IsGuestID(id string) bool {
	return strings.HasPrefix(id, GuestIDPrefix)
}

// Address — адрес пользователя или доставки.
type Address struct {
	ID                 string `json:"id"`
	Street             string `json:"street"`
	City               string `json:"city"`
	State              string `json:"state"`
	PhoneNumber        string `json:"phoneNumber"`
	ZipCode            string `json:"zipCode"`
	CountryCallingCode string `json:"countryCallingCode"`
	Country            string `json:"country"`
}

// Validate проверяет, что заполнены все обязательные поля адреса.
func (a Address) Validate() []error {
	var errs []error

	required := []struct {
		value string
		err   error
	}{
		{a.Street, ErrAddressStreetRequired},
		{a.City, ErrAddressCityRequired},
		{a.State, ErrAddressStateRequired},
		{a.PhoneNumber, ErrAddressPhoneNumberRequired},
		{a.ZipCode, ErrAddressZipCodeRequired},
		{a.CountryCallingCode, ErrAddressCountryCallingCodeRequired},
		{a.Country, ErrAddressCountryRequired},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			errs = append(errs, field.err)
		}
	}

	return errs
}

// User — владелец заказов.
type User struct {
	ID      string   `json:"id"`
	Address *Address `json:"address,omitempty"`
	Role    Role     `json:"role"`
}

func (u User) EntityID() string { return u.ID }

func (u User) WithEntityID(id string) User {
	u.ID = id
	return u
}

var _ Entity[User] = User{}

// Clone возвращает копию пользователя без общего указателя на адрес.
func (u User) Clone() User {
	out := u
	if u.Address != nil {
		addr := *u.Address
		out.Address = &addr
	}
	return out
}
