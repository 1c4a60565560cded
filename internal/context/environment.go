package context

import "strings"

// Environment selects which Transbank endpoints a client talks to.
type Environment string

const (
	Production  Environment = "production"
	Integration Environment = "integration"
)

// ParseEnvironment maps a configured value to an Environment. Only the exact
// word "production" selects production; everything else (including the empty
// string) falls back to integration.
func ParseEnvironment(value string) Environment {
	if strings.TrimSpace(value) == string(Production) {
		return Production
	}
	return Integration
}

// IsProduction reports whether e targets the production endpoints.
func (e Environment) IsProduction() bool {
	return e == Production
}

// IsIntegration reports whether e targets the integration endpoints.
func (e Environment) IsIntegration() bool {
	return !e.IsProduction()
}

func (e Environment) String() string {
	if e.IsProduction() {
		return string(Production)
	}
	return string(Integration)
}
