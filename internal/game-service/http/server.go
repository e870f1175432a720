package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/party-bet-platform/internal/game-service/domain"
	"github.com/radieske/party-bet-platform/internal/game-service/dto"
	"github.com/radieske/party-bet-platform/internal/game-service/game"
	"github.com/radieske/party-bet-platform/internal/shared/apperr"
)

type Server struct {
	log *zap.Logger
	ctl *game.Controller
}

func NewServer(log *zap.Logger, ctl *game.Controller) *Server {
	return &Server{log: log, ctl: ctl}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/v1/sessions", s.createSession)
	r.Route("/v1/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.getSession)
		r.Get("/ledger", s.getLedger) // snapshot autoritativo, mesmo formato do evento
		r.Post("/participants", s.joinSession)
		r.Get("/participants/{userId}", s.getParticipant)

		r.Post("/challenge", s.createChallenge)
		r.Post("/challenge/close-volunteering", s.closeVolunteering)
		r.Post("/challenge/volunteers", s.volunteer)
		r.Post("/challenge/admin-volunteers", s.adminVolunteer)
		r.Post("/challenge/contestants", s.addContestant)
		r.Post("/challenge/select", s.selectContestants)
		r.Post("/challenge/start-betting", s.startBetting)
		r.Post("/challenge/close-betting", s.closeBetting)
		r.Post("/challenge/resolve", s.resolve)
		r.Post("/challenge/cancel", s.cancel)
		r.Post("/reset", s.reset)

		r.Post("/bets", s.placeBet)
		r.Get("/odds", s.previewOdds) // ?contestantId=&amount=
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.HTTPStatus(err), dto.ErrorResponse{Error: apperr.KindName(err), Message: errMessage(err)})
}

func errMessage(err error) string {
	var ae *apperr.Error
	if apperr.KindName(err) == "INTERNAL" || !errors.As(err, &ae) {
		return "internal error"
	}
	return ae.Message
}

// decode lê o corpo JSON e aplica as validações do dto
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.InvalidArgument("bad json")
	}
	if err := dto.Validate(v); err != nil {
		return apperr.InvalidArgument(err.Error())
	}
	return nil
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: "ok"})
}

func participantResponse(p domain.Participant) dto.ParticipantResponse {
	return dto.ParticipantResponse{
		SessionID:     p.SessionID,
		UserID:        p.UserID,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		Age:           p.Age,
		Balance:       p.Balance,
		LockedBalance: p.LockedBalance,
		IsVolunteer:   p.IsVolunteer,
		IsContestant:  p.IsContestant,
	}
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateSessionRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			s.writeErr(w, err)
			return
		}
	}
	res, err := s.ctl.CreateSession(r.Context(), req.HostName)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.CreateSessionResponse{SessionID: res.SessionID, HostID: res.HostID})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.ctl.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if sess == nil {
		s.writeErr(w, apperr.NotFound("session not found"))
		return
	}
	writeJSON(w, http.StatusOK, dto.SessionResponse{
		ID:                 sess.ID,
		HostID:             sess.HostID,
		HostName:           sess.HostName,
		Status:             string(sess.Status),
		CurrentChallengeID: sess.CurrentChallengeID,
		ParticipantCount:   sess.ParticipantCount,
		Version:            sess.Version,
		CreatedAt:          sess.CreatedAt,
	})
}

func (s *Server) getLedger(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ctl.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game.SnapshotEvent(snap, "snapshot", "", time.Now()))
}

func (s *Server) joinSession(w http.ResponseWriter, r *http.Request) {
	var req dto.JoinSessionRequest
	if err := decode(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	res, err := s.ctl.JoinSession(r.Context(), game.JoinInput{
		SessionID: chi.URLParam(r, "id"),
		UserID:    req.UserID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Age:       req.Age,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	status := http.StatusCreated
	if res.IsReturning {
		status = http.StatusOK
	}
	writeJSON(w, status, dto.JoinSessionResponse{Participant: participantResponse(res.Participant), IsReturning: res.IsReturning})
}

func (s *Server) getParticipant(w http.ResponseWriter, r *http.Request) {
	p, err := s.ctl.GetParticipant(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "userId"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if p == nil {
		s.writeErr(w, apperr.NotFound("participant not found"))
		return
	}
	writeJSON(w, http.StatusOK, participantResponse(*p))
}

func (s *Server) createChallenge(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateChallengeRequest
	if err := decode(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	id, err := s.ctl.CreateChallenge(r.Context(), game.ChallengeInput{
		SessionID:     chi.URLParam(r, "id"),
		Name:          req.Name,
		Description:   req.Description,
		RequiredCount: req.RequiredCount,
		MinAge:        req.MinAge,
		MaxAge:        req.MaxAge,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.ChallengeCreatedResponse{ChallengeID: id})
}

func (s *Server) closeVolunteering(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.CloseVolunteering(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) volunteer(w http.ResponseWriter, r *http.Request) {
	var req dto.VolunteerRequest
	if err := decode(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	locked, err := s.ctl.Volunteer(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.VolunteerResponse{LockedAmount: locked})
}

func (s *Server) adminVolunteer(w http.ResponseWriter, r *http.Request) {
	var req dto.VolunteerRequest
	if err := decode(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	locked, err := s.ctl.AdminMakeVolunteer(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.VolunteerResponse{LockedAmount: locked})
}

func (s *Server) addContestant(w http.ResponseWriter, r *http.Request) {
	var req dto.AddContestantRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			s.writeErr(w, err)
			return
		}
	}
	id, err := s.ctl.AddContestant(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AddContestantResponse{UserID: id})
}

func (s *Server) selectContestants(w http.ResponseWriter, r *http.Request) {
	var req dto.SelectContestantsRequest
	if err := decode(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	res, err := s.ctl.SelectContestants(r.Context(), game.SelectInput{
		SessionID:   chi.URLParam(r, "id"),
		Mode:        domain.SelectionMode(req.Mode),
		SelectedIDs: req.SelectedIDs,
		Count:       req.Count,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SelectContestantsResponse{Contestants: res.Contestants, RefundedCount: res.RefundedCount})
}

func (s *Server) startBetting(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.StartBettingPhase(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) closeBetting(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.CloseBetting(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) {
	var req dto.ResolveRequest
	if err := decode(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	res, err := s.ctl.ResolveChallenge(r.Context(), chi.URLParam(r, "id"), req.WinnerID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ResolveResponse{
		WinnerID:           res.WinnerID,
		WinningCoefficient: res.WinningCoefficient,
		TotalPayouts:       res.TotalPayouts,
		WinnersCount:       res.WinnersCount,
		ContestantReward:   res.ContestantReward,
	})
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.CancelChallenge(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.ResetSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := decode(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	res, err := s.ctl.PlaceBet(r.Context(), game.BetInput{
		SessionID:    chi.URLParam(r, "id"),
		UserID:       req.UserID,
		ContestantID: req.ContestantID,
		NewAmount:    req.NewAmount,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PlaceBetResponse{
		BetID:           res.BetID,
		Amount:          res.Amount,
		Status:          string(res.Status),
		OddsAtPlacement: res.OddsAtPlacement,
		NewBalance:      res.NewBalance,
	})
}

func (s *Server) previewOdds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var amount int64
	if raw := q.Get("amount"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeErr(w, apperr.InvalidArgument("amount must be an integer"))
			return
		}
		amount = v
	}
	p, err := s.ctl.PreviewOdds(r.Context(), chi.URLParam(r, "id"), q.Get("contestantId"), amount)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.OddsPreviewResponse{
		Odds:            p.Current.Odds,
		TotalPool:       p.Current.TotalPool,
		OddsAfter:       p.After.Odds,
		TotalPoolAfter:  p.After.TotalPool,
		Coefficient:     p.Coefficient,
		PotentialPayout: p.PotentialPayout,
	})
}
