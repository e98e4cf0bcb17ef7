package container

import "fmt"

// ServiceNotFoundError is returned by ResolveRequired when no service is
// registered under the requested name.
type ServiceNotFoundError struct {
	Name string
}

func (e *ServiceNotFoundError) Error() string {
	return fmt.Sprintf("service %q not found", e.Name)
}

// DependencyError is returned when a service's named dependency cannot be
// resolved. Configuration errors like this are surfaced immediately to the
// registering code and never retried.
type DependencyError struct {
	Service string
	Missing string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("service %q depends on unresolved service %q", e.Service, e.Missing)
}
