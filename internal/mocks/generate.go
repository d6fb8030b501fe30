// Package mocks provides mock implementations for testing the handshake services.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the ports interfaces. To regenerate after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	dir := mocks.NewMockUserDirectory(ctrl)
//	dir.EXPECT().Lookup(gomock.Any(), "Alice").Return(user, nil)
package mocks

// Generate mock for the UserDirectory port. This creates MockUserDirectory
// with Lookup, LookupPrimary, IsAttached, GetAuthToken, AuthenticateWithToken.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=user_directory_mock.go github.com/wikimesh/ssohub/internal/ports UserDirectory
