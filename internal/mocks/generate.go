// Package mocks provides generated mock implementations of the auth ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// Hand-written fakes with richer behaviour live in the auth subpackage.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	records := mocks.NewMockProfileRecordStore(ctrl)
//	records.EXPECT().GetProfileByID(gomock.Any(), "u1").Return(rec, nil)
package mocks

// Generate mock for ProfileRecordStore interface from internal/ports package.
// This creates MockProfileRecordStore with methods for all ProfileRecordStore interface methods:
// GetProfileByID
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=profile_record_store_mock.go github.com/target/grant-portal/internal/ports ProfileRecordStore

// Generate mock for CacheRepository interface from internal/ports package.
// This creates MockCacheRepository with methods for all CacheRepository interface methods:
// Set, Get, Delete, Health
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/target/grant-portal/internal/ports CacheRepository
