package authorization

import "context"

type Service interface {
	Authorize(ctx context.Context, role Role, resource string, action string) error
	Capabilities(role Role) []Capability
}
