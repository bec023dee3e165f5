package models

import "time"

// SwapStatus is a node of the swap lifecycle graph.
type SwapStatus string

const (
	SwapPending   SwapStatus = "pending"
	SwapAccepted  SwapStatus = "accepted"
	SwapRejected  SwapStatus = "rejected"
	SwapCancelled SwapStatus = "cancelled"
	SwapCompleted SwapStatus = "completed"
)

// Valid reports whether s is a known status.
func (s SwapStatus) Valid() bool {
	switch s {
	case SwapPending, SwapAccepted, SwapRejected, SwapCancelled, SwapCompleted:
		return true
	}
	return false
}

// Active statuses block a second negotiation between the same pair.
func (s SwapStatus) Active() bool {
	return s == SwapPending || s == SwapAccepted
}

// Terminal statuses have no outgoing edges.
func (s SwapStatus) Terminal() bool {
	return s == SwapRejected || s == SwapCancelled || s == SwapCompleted
}

// ActiveSwapStatuses lists the statuses covered by the one-active-swap-per-pair index.
var ActiveSwapStatuses = []SwapStatus{SwapPending, SwapAccepted}

// SwapAction names a lifecycle transition.
type SwapAction string

const (
	SwapActionAccept   SwapAction = "accept"
	SwapActionReject   SwapAction = "reject"
	SwapActionCancel   SwapAction = "cancel"
	SwapActionComplete SwapAction = "complete"
)

// SwapActor is who may perform an action.
type SwapActor int

const (
	ActorRecipient SwapActor = iota + 1
	ActorEitherParty
)

// SwapTransition is one row of the lifecycle table.
type SwapTransition struct {
	Action SwapAction
	Actor  SwapActor
	From   []SwapStatus
	To     SwapStatus
}

// Allows reports whether the transition may start from s.
func (t SwapTransition) Allows(s SwapStatus) bool {
	for _, from := range t.From {
		if from == s {
			return true
		}
	}
	return false
}

// FromStrings returns From as plain strings for SQL array binding.
func (t SwapTransition) FromStrings() []string {
	out := make([]string, len(t.From))
	for i, s := range t.From {
		out[i] = string(s)
	}
	return out
}

var swapTransitions = map[SwapAction]SwapTransition{
	SwapActionAccept:   {Action: SwapActionAccept, Actor: ActorRecipient, From: []SwapStatus{SwapPending}, To: SwapAccepted},
	SwapActionReject:   {Action: SwapActionReject, Actor: ActorRecipient, From: []SwapStatus{SwapPending}, To: SwapRejected},
	SwapActionCancel:   {Action: SwapActionCancel, Actor: ActorEitherParty, From: []SwapStatus{SwapPending, SwapAccepted}, To: SwapCancelled},
	SwapActionComplete: {Action: SwapActionComplete, Actor: ActorEitherParty, From: []SwapStatus{SwapAccepted}, To: SwapCompleted},
}

// LookupTransition returns the table row for action.
func LookupTransition(action SwapAction) (SwapTransition, bool) {
	t, ok := swapTransitions[action]
	return t, ok
}

// SwapRequest is a row of swap_requests.
type SwapRequest struct {
	ID                 string     `db:"id" json:"id"`
	RequesterID        string     `db:"requester_id" json:"requester_id"`
	RecipientID        string     `db:"recipient_id" json:"recipient_id"`
	RequesterSkill     string     `db:"requester_skill" json:"requester_skill"`
	RecipientSkill     string     `db:"recipient_skill" json:"recipient_skill"`
	Status             SwapStatus `db:"status" json:"status"`
	Message            string     `db:"message" json:"message"`
	ScheduledDate      *time.Time `db:"scheduled_date" json:"scheduled_date,omitempty"`
	CompletedAt        *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledBy        *string    `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancellationReason string     `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// IsParticipant reports whether userID is the requester or recipient.
func (s *SwapRequest) IsParticipant(userID string) bool {
	return userID != "" && (s.RequesterID == userID || s.RecipientID == userID)
}

// OtherParty returns the participant that is not userID.
func (s *SwapRequest) OtherParty(userID string) string {
	if s.RequesterID == userID {
		return s.RecipientID
	}
	return s.RequesterID
}

// PairKey normalizes an unordered pair of user ids, matching the pair_key column.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// SwapTransitionPatch carries the columns a transition writes together with the new status.
type SwapTransitionPatch struct {
	ID                 string
	From               []SwapStatus
	To                 SwapStatus
	CompletedAt        *time.Time
	CancelledBy        *string
	CancellationReason string
	UpdatedAt          time.Time
}

// SwapFilter drives swap listings.
type SwapFilter struct {
	UserID   string
	Status   *SwapStatus
	Page     int
	PageSize int
}

// SwapExportRow is one line of the moderation export.
type SwapExportRow struct {
	ID             string     `db:"id"`
	Status         SwapStatus `db:"status"`
	RequesterName  string     `db:"requester_name"`
	RequesterEmail string     `db:"requester_email"`
	RecipientName  string     `db:"recipient_name"`
	RecipientEmail string     `db:"recipient_email"`
	RequesterSkill string     `db:"requester_skill"`
	RecipientSkill string     `db:"recipient_skill"`
	CreatedAt      time.Time  `db:"created_at"`
	CompletedAt    *time.Time `db:"completed_at"`
}
