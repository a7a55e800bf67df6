package model

// ReviewAction is a reviewer-initiated lifecycle transition.
type ReviewAction string

const (
	ReviewActionAccept ReviewAction = "accept"
	ReviewActionModify ReviewAction = "modify"
	ReviewActionReject ReviewAction = "reject" // presented as "dismiss" for insights
	ReviewActionDefer  ReviewAction = "defer"
)

// legalActions maps each activity type to the transitions a reviewer may take.
// Questions and answers are read-only: questions wait for their answer and
// answers are auto-resolved.
var legalActions = map[ActivityType][]ReviewAction{
	ActivityTypeProposal: {ReviewActionAccept, ReviewActionModify, ReviewActionReject, ReviewActionDefer},
	ActivityTypeInsight:  {ReviewActionAccept, ReviewActionReject},
	ActivityTypeQuestion: {},
	ActivityTypeAnswer:   {},
}

// ActionsFor returns the legal review actions for an activity type.
// Unknown activity types get no actions.
func ActionsFor(t ActivityType) []ReviewAction {
	actions, ok := legalActions[t]
	if !ok {
		return nil
	}
	out := make([]ReviewAction, len(actions))
	copy(out, actions)
	return out
}

// ActionAllowed reports whether the action is a legal transition for the
// activity type. Presentation uses this to decide which controls to render;
// the lifecycle service enforces it again before persisting.
func ActionAllowed(t ActivityType, action ReviewAction) bool {
	for _, a := range legalActions[t] {
		if a == action {
			return true
		}
	}
	return false
}
