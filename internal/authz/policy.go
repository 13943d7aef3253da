// Пакет authz — единая точка принятия решений о доступе. Чистые функции без
// I/O; каждая мутирующая операция сервиса вызывает ровно одну из них до
// обращения к хранилищу. Правила доступа нигде больше не дублируются.
package authz

import (
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// RequireAuthenticated возвращает identity или ErrUnauthenticated, если её нет.
func RequireAuthenticated(identity *domain.Identity) (*domain.Identity, error) {
	if identity == nil || identity.ID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return identity, nil
}

// RequireRole проверяет аутентификацию и принадлежность роли к разрешённому
// набору. Роли сравниваются регистронезависимо.
func RequireRole(identity *domain.Identity, allowed ...domain.Role) (*domain.Identity, error) {
	identity, err := RequireAuthenticated(identity)
	if err != nil {
		return nil, err
	}

	role := domain.NormalizeRole(string(identity.Role))
	for _, candidate := range allowed {
		if role == candidate {
			return identity, nil
		}
	}

	return nil, fmt.Errorf("%w: requires one of roles %v", domain.ErrForbidden, allowed)
}

// RequireOwnerOrAdmin пропускает администратора или владельца ресурса.
func RequireOwnerOrAdmin(identity *domain.Identity, resourceOwnerID string) (*domain.Identity, error) {
	identity, err := RequireAuthenticated(identity)
	if err != nil {
		return nil, err
	}

	if domain.NormalizeRole(string(identity.Role)) == domain.RoleAdmin {
		return identity, nil
	}
	if resourceOwnerID != "" && identity.ID == resourceOwnerID {
		return identity, nil
	}

	return nil, fmt.Errorf("%w: resource belongs to another user", domain.ErrForbidden)
}
