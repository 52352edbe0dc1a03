// Package access decides which program-scoped role a user effectively
// holds over a client record. Every protected operation goes through
// here; no call site re-implements any part of the check.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gilliankerr/KoNote-sub000/internal/model"
	"github.com/gilliankerr/KoNote-sub000/internal/repository"
	"github.com/gilliankerr/KoNote-sub000/internal/service/rbac"
)

// ErrAccessDenied covers every refusal: block-list hit, universe
// mismatch, no shared program, matrix deny, or a target that could not
// be resolved. Callers surface it uniformly and never tell the client
// which rule fired.
var ErrAccessDenied = errors.New("access denied")

// Resolution is the acting context attached to an allowed operation.
type Resolution struct {
	ProgramID uuid.UUID
	Role      model.Role
	Decision  model.Decision
}

type Resolver struct {
	programs repository.ProgramRepository
	clients  repository.ClientRepository
}

func NewResolver(programs repository.ProgramRepository, clients repository.ClientRepository) *Resolver {
	return &Resolver{programs: programs, clients: clients}
}

// Resolve decides whether actor may perform perm against the given
// client record, and under which program. The order of checks is fixed:
//
//  1. an active access block denies, before anything else
//  2. demo and real universes never mix
//  3. the actor needs an active grant in a program the client is
//     enrolled in; the admin flag never substitutes for one
//  4. among shared programs, pick the best one for this permission
func (r *Resolver) Resolve(ctx context.Context, actor *model.User, clientFileID uuid.UUID, perm model.Permission) (*Resolution, error) {
	client, err := r.clients.Get(ctx, clientFileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Indistinguishable from a denial, by policy.
			return nil, ErrAccessDenied
		}
		return nil, fmt.Errorf("load client: %w", err)
	}

	blocked, err := r.clients.HasActiveBlock(ctx, actor.ID, client.ID)
	if err != nil {
		return nil, fmt.Errorf("check access block: %w", err)
	}
	if blocked {
		return nil, ErrAccessDenied
	}

	if actor.IsDemo != client.IsDemo {
		return nil, ErrAccessDenied
	}

	shared, err := r.sharedGrants(ctx, actor.ID, client.ID)
	if err != nil {
		return nil, err
	}
	if len(shared) == 0 {
		return nil, ErrAccessDenied
	}

	best := bestGrant(shared, perm)
	decision := rbac.Decide(best.Role, perm)
	if decision == model.Deny {
		return nil, ErrAccessDenied
	}

	return &Resolution{ProgramID: best.ProgramID, Role: best.Role, Decision: decision}, nil
}

// ResolveGlobal handles permissions with no client-record target
// (aggregate reports). The actor needs any active grant whose role does
// not deny the permission.
func (r *Resolver) ResolveGlobal(ctx context.Context, actor *model.User, perm model.Permission) (*Resolution, error) {
	grants, err := r.programs.ActiveGrantsForUser(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("load grants: %w", err)
	}
	if len(grants) == 0 {
		return nil, ErrAccessDenied
	}

	best := bestGrant(grants, perm)
	decision := rbac.Decide(best.Role, perm)
	if decision == model.Deny {
		return nil, ErrAccessDenied
	}
	return &Resolution{ProgramID: best.ProgramID, Role: best.Role, Decision: decision}, nil
}

func (r *Resolver) sharedGrants(ctx context.Context, userID, clientFileID uuid.UUID) ([]*model.UserProgramRole, error) {
	grants, err := r.programs.ActiveGrantsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load grants: %w", err)
	}

	enrolled, err := r.clients.EnrolledProgramIDs(ctx, clientFileID)
	if err != nil {
		return nil, fmt.Errorf("load enrolments: %w", err)
	}
	enrolledSet := make(map[uuid.UUID]struct{}, len(enrolled))
	for _, id := range enrolled {
		enrolledSet[id] = struct{}{}
	}

	var shared []*model.UserProgramRole
	for _, grant := range grants {
		if _, ok := enrolledSet[grant.ProgramID]; ok {
			shared = append(shared, grant)
		}
	}
	return shared, nil
}

// bestGrant selects in two phases. First it narrows to grants whose
// role does not deny the permission, falling back to the full set when
// none qualifies: a higher-ranked role that denies a permission must
// not shadow a lower-ranked role that grants it. Then it picks the
// highest rank, breaking ties on lowest program ID for determinism.
func bestGrant(grants []*model.UserProgramRole, perm model.Permission) *model.UserProgramRole {
	pool := grants
	if perm != "" {
		var granting []*model.UserProgramRole
		for _, g := range grants {
			if rbac.Decide(g.Role, perm) != model.Deny {
				granting = append(granting, g)
			}
		}
		if len(granting) > 0 {
			pool = granting
		}
	}

	best := pool[0]
	for _, g := range pool[1:] {
		if g.Role.Rank() > best.Role.Rank() {
			best = g
			continue
		}
		if g.Role.Rank() == best.Role.Rank() &&
			strings.Compare(g.ProgramID.String(), best.ProgramID.String()) < 0 {
			best = g
		}
	}
	return best
}
