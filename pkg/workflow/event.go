package workflow

import (
	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// EventType identifies what kind of event is being simulated.
type EventType string

const (
	EventPush        EventType = "push"
	EventPullRequest EventType = "pull_request"
	EventSchedule    EventType = "schedule"
	EventRelease     EventType = "release"
)

// DefaultReleaseAction is assumed when a release trigger or event names no
// action.
const DefaultReleaseAction = "published"

// Event is the occurrence a plan is built for: a push or pull request with
// its branch, a due schedule, or a release action.
type Event struct {
	Type   EventType `json:"type"`
	Branch string    `json:"branch,omitempty"`
	Action string    `json:"action,omitempty"`
}

// ParseEventType validates an event name from the CLI.
func ParseEventType(s string) (EventType, error) {
	switch EventType(s) {
	case EventPush, EventPullRequest, EventSchedule, EventRelease:
		return EventType(s), nil
	}
	return "", errors.Errorf("unknown event type %q (expected push, pull_request, schedule or release)", s)
}

// Triggers reports whether the event starts this workflow.
func (w *Workflow) Triggers(ev Event) bool {
	switch ev.Type {
	case EventPush:
		return matchBranches(w.On.Push, ev.Branch)
	case EventPullRequest:
		return matchBranches(w.On.PullRequest, ev.Branch)
	case EventSchedule:
		return len(w.On.Schedule) > 0
	case EventRelease:
		if w.On.Release == nil {
			return false
		}
		types := w.On.Release.Types
		if len(types) == 0 {
			types = []string{DefaultReleaseAction}
		}
		action := ev.Action
		if action == "" {
			action = DefaultReleaseAction
		}
		for _, t := range types {
			if t == action {
				return true
			}
		}
		return false
	}
	return false
}

func matchBranches(filter *BranchFilter, branch string) bool {
	if filter == nil {
		return false
	}
	if len(filter.Branches) == 0 {
		return true
	}
	for _, pattern := range filter.Branches {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			// Validate rejects bad patterns; an unvalidated one cannot match.
			continue
		}
		if g.Match(branch) {
			return true
		}
	}
	return false
}
