// Package services – follow-relationship state machine
//
// The relationship between an ordered pair of users (actor, target) is an
// explicit three-state machine rather than ad hoc set-membership checks:
//
//	none ──follow(public)──────────────▶ following
//	none ──follow(private)─▶ requested ──accept──▶ following
//	                         requested ──reject──▶ none
//	following ──unfollow──▶ none
//
// transition is a pure function from (state, event) to (state, effect,
// error); it performs no I/O, which keeps every precondition of the
// machine unit-testable without a database. SocialService loads the
// current state, runs transition, and applies the returned effect inside
// a storage transaction.
package services

import "fmt"

// RelState is the relationship of an ordered pair (actor, target).
type RelState int

const (
	// RelNone: no edge and no pending request.
	RelNone RelState = iota
	// RelRequested: actor has a pending follow request toward target.
	RelRequested
	// RelFollowing: actor follows target.
	RelFollowing
)

// String implements fmt.Stringer for logs and API payloads.
func (s RelState) String() string {
	switch s {
	case RelNone:
		return "none"
	case RelRequested:
		return "requested"
	case RelFollowing:
		return "following"
	default:
		return fmt.Sprintf("RelState(%d)", int(s))
	}
}

// relEvent is an input to the relationship state machine.
type relEvent int

const (
	evFollow relEvent = iota
	evAccept
	evReject
	evUnfollow
)

// relEffect is the storage mutation a transition demands. Effects are
// applied atomically; each one touches at most two edge rows.
type relEffect int

const (
	// effNone: nothing to persist.
	effNone relEffect = iota
	// effCreateRequest: insert a pending request actor -> target.
	effCreateRequest
	// effCreateEdge: insert the follow edge actor -> target.
	effCreateEdge
	// effPromoteRequest: delete the pending request and insert the edge.
	effPromoteRequest
	// effDeleteRequest: delete the pending request.
	effDeleteRequest
	// effDeleteEdge: delete the follow edge.
	effDeleteEdge
)

// transition decides the next state and required effect for an event
// against the current state. targetPrivate selects the two-phase
// (request/accept) flow on follow; it is ignored for other events.
//
// Precondition violations come back as the sentinel errors handlers
// already know (ErrAlreadyRequested, ErrAlreadyFollowing,
// ErrNoPendingRequest, ErrNotFollowing).
func transition(state RelState, ev relEvent, targetPrivate bool) (RelState, relEffect, error) {
	switch ev {
	case evFollow:
		switch state {
		case RelNone:
			if targetPrivate {
				return RelRequested, effCreateRequest, nil
			}
			return RelFollowing, effCreateEdge, nil
		case RelRequested:
			return state, effNone, ErrAlreadyRequested
		case RelFollowing:
			return state, effNone, ErrAlreadyFollowing
		}
	case evAccept:
		if state == RelRequested {
			return RelFollowing, effPromoteRequest, nil
		}
		return state, effNone, ErrNoPendingRequest
	case evReject:
		if state == RelRequested {
			return RelNone, effDeleteRequest, nil
		}
		return state, effNone, ErrNoPendingRequest
	case evUnfollow:
		if state == RelFollowing {
			return RelNone, effDeleteEdge, nil
		}
		return state, effNone, ErrNotFollowing
	}
	return state, effNone, fmt.Errorf("unknown relationship event %d", ev)
}
