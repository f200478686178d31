package permissions

import (
	"fmt"
	"slices"
	"sort"

	"github.com/byterank/byterank/internal/models"
	apperrors "github.com/byterank/byterank/pkg/errors"
)

// Transition names a membership state change that requires authorization.
type Transition string

const (
	TransitionJoin              Transition = "team.join"
	TransitionRequestJoin       Transition = "team.request_join"
	TransitionResolveRequest    Transition = "team.resolve_request"
	TransitionInvite            Transition = "team.invite"
	TransitionLeave             Transition = "team.leave"
	TransitionRemove            Transition = "team.remove_member"
	TransitionPromote           Transition = "team.promote"
	TransitionDemote            Transition = "team.demote"
	TransitionTransferOwnership Transition = "team.transfer_ownership"
	TransitionDeleteTeam        Transition = "team.delete"
	TransitionUpdateTeam        Transition = "team.update"
)

// Rule describes who may perform a transition and against which target.
type Rule struct {
	Transition  Transition
	Description string

	// Actors lists the roles allowed to perform the transition. RoleNone
	// means the actor must not be a member of the team yet.
	Actors []models.MemberRole

	// Targets lists the roles the affected profile may hold. Empty means the
	// transition has no target profile.
	Targets []models.MemberRole

	// TargetViolation is returned when the target holds a role outside
	// Targets. Defaults to ErrInvalidTargetRole.
	TargetViolation *apperrors.AppError

	// Settled is the role the transition hands to its target. A member
	// asking for it on a target that already holds it gets TargetViolation
	// whatever their own role, so a repeated transfer reads as a no-op
	// conflict rather than a permission problem.
	Settled models.MemberRole

	SelfOnly bool
	DenySelf bool
}

var (
	ErrMemberNotFound    = apperrors.ErrNotFound.Derive("MEMBER_NOT_FOUND", "Member not found")
	ErrNotPermitted      = apperrors.ErrAuthorizationDenied.Derive("ROLE_NOT_PERMITTED", "Your role does not allow this action")
	ErrAlreadyMember     = apperrors.ErrInvariantViolation.Derive("ALREADY_MEMBER", "Profile is already a member of this team")
	ErrInvalidTargetRole = apperrors.ErrInvariantViolation.Derive("INVALID_TARGET_ROLE", "The member's current role does not allow this change")
	ErrAlreadyOwner      = apperrors.ErrInvariantViolation.Derive("ALREADY_OWNER", "The member already owns this team")
	ErrOwnerCannotLeave  = apperrors.ErrInvariantViolation.Derive("OWNER_CANNOT_LEAVE", "Transfer ownership before leaving the team")
	ErrSelfTarget        = apperrors.ErrInvariantViolation.Derive("SELF_TARGET", "This action cannot target yourself")
)

var (
	managers = []models.MemberRole{models.RoleOwner, models.RoleAdmin}
	owner    = []models.MemberRole{models.RoleOwner}
	nonOwner = []models.MemberRole{models.RoleAdmin, models.RoleMember}
	outsider = []models.MemberRole{models.RoleNone}
)

var registry = map[Transition]Rule{
	TransitionJoin: {
		Description:     "Join an open team",
		Actors:          outsider,
		TargetViolation: ErrAlreadyMember,
	},
	TransitionRequestJoin: {
		Description:     "Ask to join a closed team",
		Actors:          outsider,
		TargetViolation: ErrAlreadyMember,
	},
	TransitionResolveRequest: {
		Description: "Approve or reject a pending join request",
		Actors:      managers,
	},
	TransitionInvite: {
		Description:     "Invite a profile into the team",
		Actors:          managers,
		Targets:         outsider,
		TargetViolation: ErrAlreadyMember,
		DenySelf:        true,
	},
	TransitionLeave: {
		Description:     "Leave the team",
		Actors:          []models.MemberRole{models.RoleOwner, models.RoleAdmin, models.RoleMember},
		Targets:         nonOwner,
		TargetViolation: ErrOwnerCannotLeave,
		SelfOnly:        true,
	},
	TransitionRemove: {
		Description: "Remove another member from the team",
		Actors:      owner,
		Targets:     nonOwner,
		DenySelf:    true,
	},
	TransitionPromote: {
		Description: "Promote a member to admin",
		Actors:      owner,
		Targets:     []models.MemberRole{models.RoleMember},
		DenySelf:    true,
	},
	TransitionDemote: {
		Description: "Demote an admin to member",
		Actors:      owner,
		Targets:     []models.MemberRole{models.RoleAdmin},
		DenySelf:    true,
	},
	TransitionTransferOwnership: {
		Description:     "Hand team ownership to another member",
		Actors:          owner,
		Targets:         nonOwner,
		TargetViolation: ErrAlreadyOwner,
		Settled:         models.RoleOwner,
		DenySelf:        true,
	},
	TransitionDeleteTeam: {
		Description: "Delete the team and all memberships",
		Actors:      owner,
	},
	TransitionUpdateTeam: {
		Description: "Edit team details and access policy",
		Actors:      owner,
	},
}

func init() {
	for id, rule := range registry {
		rule.Transition = id
		registry[id] = rule
	}
}

// Lookup returns the rule registered for a transition.
func Lookup(t Transition) (Rule, bool) {
	rule, ok := registry[t]
	return rule, ok
}

// All returns every rule ordered by transition name.
func All() []Rule {
	out := make([]Rule, 0, len(registry))
	for _, rule := range registry {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Transition < out[j].Transition })
	return out
}

// Authorize decides whether actor may perform t against a profile holding
// target. Checks run in a fixed order: actor role, target existence, target
// role, then self-targeting. An actor whose role can never perform t is
// denied before anything about the target is revealed.
//
// For transitions without a target profile, target is ignored except for the
// outsider transitions (join, request), where actor doubles as the target and
// an existing membership is an invariant violation.
func Authorize(actor models.MemberRole, t Transition, target models.MemberRole, selfTarget bool) error {
	rule, ok := registry[t]
	if !ok {
		return fmt.Errorf("permissions: unknown transition %q", t)
	}

	if slices.Equal(rule.Actors, outsider) {
		if actor != models.RoleNone {
			return rule.targetViolation()
		}
		return nil
	}

	if rule.Settled != models.RoleNone && actor != models.RoleNone && target == rule.Settled {
		return rule.targetViolation()
	}

	if !slices.Contains(rule.Actors, actor) {
		if rule.SelfOnly && actor == models.RoleNone {
			return ErrMemberNotFound
		}
		return ErrNotPermitted
	}

	if len(rule.Targets) > 0 {
		if target == models.RoleNone && !slices.Contains(rule.Targets, models.RoleNone) {
			return ErrMemberNotFound
		}
		if !slices.Contains(rule.Targets, target) {
			return rule.targetViolation()
		}
	}

	if rule.SelfOnly && !selfTarget {
		return ErrNotPermitted
	}
	if rule.DenySelf && selfTarget {
		return ErrSelfTarget
	}

	return nil
}

// Allowed lists the transitions the role may initiate, ignoring targets.
func Allowed(actor models.MemberRole) []Transition {
	var out []Transition
	for _, rule := range All() {
		if slices.Contains(rule.Actors, actor) {
			out = append(out, rule.Transition)
		}
	}
	return out
}

func (r Rule) targetViolation() error {
	if r.TargetViolation != nil {
		return r.TargetViolation
	}
	return ErrInvalidTargetRole
}
