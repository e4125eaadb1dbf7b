//go:build tools

package tools

// Mocks under pkg/transport/mocks are generated by mockery v3, installed as
// a binary. Regenerate them with `mockery` from the module root; the
// configuration is in .mockery.yaml.
