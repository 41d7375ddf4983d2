package authorization

import (
	"context"
	_ "embed"
	"sort"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds an in-memory enforcer seeded from rolePermissions.
func NewEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role Role, resource string, action string) error {
	if _, ok := rolePermissions[role]; !ok {
		return ErrInvalidRole
	}
	resource = strings.TrimSpace(resource)
	if resource == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(subject(role), resource, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("role", string(role)),
			zap.String("resource", resource),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) Capabilities(role Role) []Capability {
	policies, err := s.enforcer.GetFilteredPolicy(0, subject(role))
	if err != nil {
		return nil
	}
	caps := make([]Capability, 0, len(policies))
	for _, p := range policies {
		if len(p) < 3 {
			continue
		}
		caps = append(caps, Capability{Resource: p[1], Action: p[2]})
	}
	sort.Slice(caps, func(i, j int) bool {
		if caps[i].Resource == caps[j].Resource {
			return actionRank(caps[i].Action) < actionRank(caps[j].Action)
		}
		return caps[i].Resource < caps[j].Resource
	})
	return caps
}

func actionRank(action string) int {
	for i, a := range crud {
		if a == action {
			return i
		}
	}
	return len(crud)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	for role, resources := range rolePermissions {
		for resource, actions := range resources {
			for _, action := range actions {
				if _, err := enforcer.AddPolicy(subject(role), resource, action); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
