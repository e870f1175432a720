package dto

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// Validate aplica as tags `validate` do payload
func Validate(v any) error {
	return validate.Struct(v)
}

type CreateSessionRequest struct {
	HostName string `json:"hostName" validate:"max=64"`
}

type JoinSessionRequest struct {
	UserID    string `json:"userId" validate:"required,max=128"`
	FirstName string `json:"firstName" validate:"required,max=64"`
	LastName  string `json:"lastName" validate:"required,max=64"`
	Age       int    `json:"age" validate:"required,gt=0,lte=150"`
}

type CreateChallengeRequest struct {
	Name          string `json:"name" validate:"required,max=120"`
	Description   string `json:"description" validate:"max=500"`
	RequiredCount int    `json:"requiredCount" validate:"required,min=2,max=10"`
	MinAge        *int   `json:"minAge" validate:"omitempty,gte=0"`
	MaxAge        *int   `json:"maxAge" validate:"omitempty,gte=0"`
}

type VolunteerRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// AddContestantRequest sem userId sorteia entre os voluntários
type AddContestantRequest struct {
	UserID string `json:"userId"`
}

type SelectContestantsRequest struct {
	Mode        string   `json:"mode" validate:"required,oneof=MANUAL RANDOM"`
	SelectedIDs []string `json:"selectedIds" validate:"required_if=Mode MANUAL,max=10,dive,required"`
	Count       int      `json:"count" validate:"omitempty,min=2,max=10"`
}

type PlaceBetRequest struct {
	UserID       string `json:"userId" validate:"required"`
	ContestantID string `json:"contestantId" validate:"required"`
	NewAmount    int64  `json:"newAmount" validate:"gte=0"` // total desejado; 0 retira a aposta
}

type ResolveRequest struct {
	WinnerID string `json:"winnerId" validate:"required"`
}
