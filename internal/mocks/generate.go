// Package mocks provides gomock implementations of the identity and
// abuse-control ports.
//
// This package uses go.uber.org/mock (gomock). To regenerate mocks after
// interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockSessionStore(ctrl)
//	store.EXPECT().Get(gomock.Any(), "tok").Return(sess, nil)
package mocks

// Generate mocks for SessionStore and UserDirectory from internal/ports.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=auth_ports_mock.go github.com/target/congregate-api/internal/ports SessionStore,UserDirectory

// Generate mock for RateLimitStore from internal/ports.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=ratelimit_store_mock.go github.com/target/congregate-api/internal/ports RateLimitStore
