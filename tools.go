//go:build tools

package tools

// mockery v3 is used as an installed binary, so no import is needed.
// The mocks under pkg/description/mocks and pkg/subscription/mocks are
// generated with the testify template; rerun mockery after changing the
// Fetcher or Renewable interfaces.
