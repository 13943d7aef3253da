package domain

import "strings"

// Role определяет роль вызывающей стороны. Закрытый набор значений.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSeller   Role = "seller"
	RoleCustomer Role = "customer"
)

// NormalizeRole приводит строковое представление роли к каноническому виду.
// Сравнение ролей всегда регистронезависимое; "vendor" — исторический синоним seller.
func NormalizeRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin":
		return RoleAdmin
	case "seller", "vendor":
		return RoleSeller
	case "customer":
		return RoleCustomer
	default:
		return Role(strings.ToLower(strings.TrimSpace(raw)))
	}
}

// Known сообщает, относится ли роль к закрытому набору.
func (r Role) Known() bool {
	switch r {
	case RoleAdmin, RoleSeller, RoleCustomer:
		return true
	default:
		return false
	}
}

// Identity — уже проверенная личность вызывающего. Токены парсит gateway,
// сюда identity приходит готовой; nil означает анонимный запрос.
type Identity struct {
	ID    string
	Email string
	Role  Role
}
