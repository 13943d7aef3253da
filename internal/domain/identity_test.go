package domain_test

import (
	"testing"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func TestNormalizeRole(t *testing.T) {
	cases := []struct {
		raw  string
		want domain.Role
	}{
		{"admin", domain.RoleAdmin},
		{"Admin", domain.RoleAdmin},
		{"ADMIN", domain.RoleAdmin},
		{"  admin  ", domain.RoleAdmin},
		{"seller", domain.RoleSeller},
		{"Vendor", domain.RoleSeller},
		{"customer", domain.RoleCustomer},
		{"CUSTOMER", domain.RoleCustomer},
		{"guest", domain.Role("guest")},
	}

	for _, tc := range cases {
		if got := domain.NormalizeRole(tc.raw); got != tc.want {
			t.Errorf("NormalizeRole(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestRoleKnown(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleSeller, domain.RoleCustomer} {
		if !role.Known() {
			t.Errorf("role %q should be known", role)
		}
	}
	if domain.Role("guest").Known() {
		t.Error("unexpected known role guest")
	}
}
