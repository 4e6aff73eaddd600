// ABOUTME: No-op telemetry constructors for tests that exercise real components with telemetry disabled
// ABOUTME: Provides no business logic mocking, only disabled telemetry

package telemetry

// NewForTesting returns a no-op telemetry instance for use in tests.
func NewForTesting() Telemetry {
	return NewNoop()
}

// NewDisabled is an alias for NewNoop used where telemetry is explicitly off.
func NewDisabled() Telemetry {
	return NewNoop()
}
