package rbac

import (
	"fmt"
	"sort"
	"sync"

	"github.com/casbin/casbin/v2"
	"go.uber.org/zap"
)

//go:generate mockgen -source=rbac_service.go -destination=mock/rbac_service_mock.go -package=mock
type Service interface {
	Can(role Role, resource, action string) bool
	Enforce(req EnforceRequest) (bool, error)
	Capabilities(role Role) ([]string, error)
}

type service struct {
	enforcer *casbin.Enforcer
	mu       sync.Mutex
	logger   *zap.Logger
}

// NewService seeds the enforcer with grants and returns a Service over it.
func NewService(enforcer *casbin.Enforcer, grants []Grant, logger ...*zap.Logger) (Service, error) {
	l := zap.L()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}

	s := &service{
		enforcer: enforcer,
		logger:   l.Named("rbac.service"),
	}
	if err := s.load(grants); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *service) load(grants []Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enforcer.ClearPolicy()

	var policies int
	for _, g := range grants {
		for _, parent := range g.Inherits {
			if _, err := s.enforcer.AddGroupingPolicy(string(g.Role), string(parent)); err != nil {
				return fmt.Errorf("grant %s inherits %s: %w", g.Role, parent, err)
			}
		}
		for _, c := range g.Capabilities {
			if _, err := s.enforcer.AddPolicy(string(g.Role), c.Resource, c.Action); err != nil {
				return fmt.Errorf("grant %s %s:%s: %w", g.Role, c.Resource, c.Action, err)
			}
			policies++
		}
	}

	s.logger.Debug("rbac policy loaded",
		zap.Int("grants", len(grants)),
		zap.Int("policies", policies),
	)
	return nil
}

func (s *service) Can(role Role, resource, action string) bool {
	allowed, err := s.Enforce(EnforceRequest{
		Role:     string(role),
		Resource: resource,
		Action:   action,
	})
	return err == nil && allowed
}

func (s *service) Enforce(req EnforceRequest) (bool, error) {
	role, err := ParseRole(req.Role)
	if err != nil {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	allowed, err := s.enforcer.Enforce(string(role), req.Resource, req.Action)
	if err != nil {
		s.logger.Error("rbac enforce failed",
			zap.String("role", req.Role),
			zap.String("resource", req.Resource),
			zap.String("action", req.Action),
			zap.Error(err),
		)
		return false, err
	}

	s.logger.Debug("rbac enforce result",
		zap.String("role", req.Role),
		zap.String("resource", req.Resource),
		zap.String("action", req.Action),
		zap.Bool("allowed", allowed),
	)
	return allowed, nil
}

// Capabilities lists "resource:action" pairs held by role, including
// inherited ones, sorted.
func (s *service) Capabilities(role Role) ([]string, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	perms, err := s.enforcer.GetImplicitPermissionsForUser(string(role))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(perms))
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		if len(p) < 3 {
			continue
		}
		key := p[1] + ":" + p[2]
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
}
