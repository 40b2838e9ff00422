package rsvp

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	MsgNoneSelected  = "No users selected."
	MsgInviteFailed  = "Error sending invitations."
	MsgRSVPLoading   = "Loading..."
	MsgRSVPLoadError = "Failed to load RSVPs."
)

var (
	// ErrNoneSelected is returned before any network call when the selection is empty.
	ErrNoneSelected = errors.New(MsgNoneSelected)
	// ErrInviteFailed covers both transport failures and a non-success reply.
	ErrInviteFailed = errors.New(MsgInviteFailed)
)

// InviteResult is the invitation endpoint's reply.
type InviteResult struct {
	Message        string  `json:"message"`
	ProcessedUsers []int64 `json:"processed_users"`
}

// Succeeded mirrors the server contract: success is spelled out in the message.
func (r InviteResult) Succeeded() bool {
	return strings.Contains(r.Message, "successfully")
}

// Inviter is the invitation endpoint plus the RSVP list refresh that follows it.
type Inviter interface {
	Invite(ctx context.Context, eventPK int64, userIDs []int64) (InviteResult, error)
	RSVPList(ctx context.Context, eventPK int64) (string, error)
}

// Outcome is what a successful submit produced. RSVPErr is set when the
// invitations went out but the list refresh did not.
type Outcome struct {
	Result   InviteResult
	RSVPHTML string
	RSVPErr  error
}

// Submit sends the selected ids for eventPK. An empty selection never reaches
// the network. On success the selection is reset and the RSVP list reloaded.
func Submit(ctx context.Context, inviter Inviter, eventPK int64, sel *Selection) (Outcome, error) {
	if sel == nil || sel.Len() == 0 {
		return Outcome{}, ErrNoneSelected
	}
	result, err := inviter.Invite(ctx, eventPK, sel.IDs())
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInviteFailed, err)
	}
	if !result.Succeeded() {
		return Outcome{Result: result}, fmt.Errorf("%w: %s", ErrInviteFailed, result.Message)
	}
	sel.Reset()

	outcome := Outcome{Result: result}
	outcome.RSVPHTML, outcome.RSVPErr = inviter.RSVPList(ctx, eventPK)
	return outcome, nil
}
