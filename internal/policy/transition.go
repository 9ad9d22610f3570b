package policy

import (
	"fmt"
	"strings"

	"github.com/unisupport/portal/internal/domain"
	apperrors "github.com/unisupport/portal/pkg/util/errorutil"
)

// allowedTransitions is the directed edge set of the ticket status machine.
// There is no edge back to open and closed has no outgoing edges.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusClosed},
	domain.TicketStatusInProgress: {domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed, domain.TicketStatusInProgress},
	domain.TicketStatusClosed:     {},
}

// ValidTargets returns the statuses reachable from current, in table order.
func ValidTargets(current domain.TicketStatus) []domain.TicketStatus {
	targets := allowedTransitions[current]
	out := make([]domain.TicketStatus, len(targets))
	copy(out, targets)
	return out
}

// Transition checks whether requested is reachable from current. On denial
// it returns an INVALID_TRANSITION error whose message and details list the
// valid next states so clients can retry.
func Transition(current, requested domain.TicketStatus) error {
	for _, candidate := range allowedTransitions[current] {
		if candidate == requested {
			return nil
		}
	}
	targets := allowedTransitions[current]
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = string(t)
	}
	msg := fmt.Sprintf("invalid status transition from '%s' to '%s'", current, requested)
	if len(names) > 0 {
		msg += ". Valid transitions: " + strings.Join(names, ", ")
	} else {
		msg += ". '" + string(current) + "' is terminal"
	}
	return apperrors.NewInvalidTransition(msg, names)
}
