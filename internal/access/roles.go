package access

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Role is a privilege level. Roles are ordered: holding a role implies every
// less privileged one.
type Role int

const (
	Strategist Role = iota
	Guardian
	Admin
	DefaultAdmin
)

// Cascade lists roles from least to most privileged.
var Cascade = []Role{Strategist, Guardian, Admin, DefaultAdmin}

func (r Role) String() string {
	switch r {
	case Strategist:
		return "STRATEGIST"
	case Guardian:
		return "GUARDIAN"
	case Admin:
		return "ADMIN"
	case DefaultAdmin:
		return "DEFAULT_ADMIN"
	default:
		return fmt.Sprintf("ROLE(%d)", int(r))
	}
}

// ParseRole converts a role name into a Role.
func ParseRole(name string) (Role, error) {
	for _, r := range Cascade {
		if strings.EqualFold(r.String(), strings.TrimSpace(name)) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", name)
}

// Authorizer answers whether a caller holds at least the given role.
type Authorizer interface {
	Authorized(caller solana.PublicKey, role Role) bool
}

// Grants is an in-memory role table checked against the cascade.
type Grants struct {
	mu     sync.RWMutex
	grants map[Role]map[solana.PublicKey]bool
}

// NewGrants creates an empty grant table.
func NewGrants() *Grants {
	return &Grants{grants: make(map[Role]map[solana.PublicKey]bool)}
}

// Grant gives role to holder.
func (g *Grants) Grant(role Role, holder solana.PublicKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.grants[role]
	if !ok {
		m = make(map[solana.PublicKey]bool)
		g.grants[role] = m
	}
	m[holder] = true
}

// Revoke removes role from holder. Other roles held are untouched.
func (g *Grants) Revoke(role Role, holder solana.PublicKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.grants[role], holder)
}

// Authorized reports whether caller holds role or any role above it.
func (g *Grants) Authorized(caller solana.PublicKey, role Role) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for i := len(Cascade) - 1; i >= 0; i-- {
		r := Cascade[i]
		if g.grants[r][caller] {
			return true
		}
		if r == role {
			break
		}
	}
	return false
}

// RolesOf lists the roles explicitly granted to holder.
func (g *Grants) RolesOf(holder solana.PublicKey) []Role {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Role
	for _, r := range Cascade {
		if g.grants[r][holder] {
			out = append(out, r)
		}
	}
	return out
}
