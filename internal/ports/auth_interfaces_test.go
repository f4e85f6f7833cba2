package ports_test

import (
	"testing"

	"github.com/target/grant-portal/internal/mocks"
	mockauth "github.com/target/grant-portal/internal/mocks/auth"
	"github.com/target/grant-portal/internal/ports"
)

// This test only verifies that our mocks conform to the ports at compile time.
func TestMocksImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.IdentityProvider = (*mockauth.FakeIdentityProvider)(nil)
	var _ ports.FederatedProvider = (*mockauth.MockFederatedProvider)(nil)
	var _ ports.SessionRepository = (*mockauth.MemorySessionRepository)(nil)
	var _ ports.ClientBindingRepository = (*mockauth.MemoryBindingRepository)(nil)
	var _ ports.CacheRepository = (*mockauth.MemoryCache)(nil)
	var _ ports.AccountRepository = (*mockauth.MemoryAccountRepository)(nil)
	var _ ports.RoleMapper = (*mockauth.StaticRoleMapper)(nil)

	var _ ports.ProfileRecordStore = (*mocks.MockProfileRecordStore)(nil)
	var _ ports.CacheRepository = (*mocks.MockCacheRepository)(nil)
}
