package dto

import "time"

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
	HostID    string `json:"hostId"`
}

type SessionResponse struct {
	ID                 string    `json:"id"`
	HostID             string    `json:"hostId"`
	HostName           string    `json:"hostName"`
	Status             string    `json:"status"`
	CurrentChallengeID string    `json:"currentChallengeId,omitempty"`
	ParticipantCount   int       `json:"participantCount"`
	Version            int64     `json:"version"`
	CreatedAt          time.Time `json:"createdAt"`
}

type ParticipantResponse struct {
	SessionID     string `json:"sessionId"`
	UserID        string `json:"userId"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Age           int    `json:"age"`
	Balance       int64  `json:"balance"`
	LockedBalance int64  `json:"lockedBalance"`
	IsVolunteer   bool   `json:"isVolunteer"`
	IsContestant  bool   `json:"isContestant"`
}

type JoinSessionResponse struct {
	Participant ParticipantResponse `json:"participant"`
	IsReturning bool                `json:"isReturning"`
}

type ChallengeCreatedResponse struct {
	ChallengeID string `json:"challengeId"`
}

type VolunteerResponse struct {
	LockedAmount int64 `json:"lockedAmount"`
}

type AddContestantResponse struct {
	UserID string `json:"userId"`
}

type SelectContestantsResponse struct {
	Contestants   []string `json:"contestants"`
	RefundedCount int      `json:"refundedCount"`
}

type PlaceBetResponse struct {
	BetID           string  `json:"betId"`
	Amount          int64   `json:"amount"`
	Status          string  `json:"status"`
	OddsAtPlacement float64 `json:"oddsAtPlacement"`
	NewBalance      int64   `json:"newBalance"`
}

type ResolveResponse struct {
	WinnerID           string  `json:"winnerId"`
	WinningCoefficient float64 `json:"winningCoefficient"`
	TotalPayouts       int64   `json:"totalPayouts"`
	WinnersCount       int     `json:"winnersCount"`
	ContestantReward   int64   `json:"contestantReward"`
}

type OddsPreviewResponse struct {
	Odds            map[string]float64 `json:"odds"`
	TotalPool       int64              `json:"totalPool"`
	OddsAfter       map[string]float64 `json:"oddsAfter"`
	TotalPoolAfter  int64              `json:"totalPoolAfter"`
	Coefficient     float64            `json:"coefficient"`
	PotentialPayout int64              `json:"potentialPayout"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
