package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/party-bet-platform/internal/game-service/dto"
	"github.com/radieske/party-bet-platform/internal/game-service/game"
	"github.com/radieske/party-bet-platform/internal/game-service/ledger"
	"github.com/radieske/party-bet-platform/internal/shared/randutil"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctl := game.New(ledger.NewMemory(), game.WithRand(randutil.New(7)))
	srv := httptest.NewServer(NewServer(zap.NewNop(), ctl).Router())
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path string, body any, out any) int {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestFullRoundOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	var created dto.CreateSessionResponse
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/v1/sessions", dto.CreateSessionRequest{HostName: "Rita"}, &created))
	base := "/v1/sessions/" + created.SessionID

	for _, id := range []string{"ana", "bia", "caio"} {
		var joined dto.JoinSessionResponse
		code := call(t, srv, http.MethodPost, base+"/participants", dto.JoinSessionRequest{UserID: id, FirstName: id, LastName: "Souza", Age: 30}, &joined)
		require.Equal(t, http.StatusCreated, code)
		assert.Equal(t, int64(1000), joined.Participant.Balance)
	}
	var again dto.JoinSessionResponse
	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, base+"/participants", dto.JoinSessionRequest{UserID: "ana", FirstName: "ana", LastName: "Souza", Age: 30}, &again))
	assert.True(t, again.IsReturning)

	var ch dto.ChallengeCreatedResponse
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, base+"/challenge", dto.CreateChallengeRequest{Name: "Karaoke", RequiredCount: 2}, &ch))
	assert.NotEmpty(t, ch.ChallengeID)

	for _, id := range []string{"ana", "bia"} {
		var v dto.VolunteerResponse
		require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, base+"/challenge/volunteers", dto.VolunteerRequest{UserID: id}, &v))
		assert.Positive(t, v.LockedAmount)
	}
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, base+"/challenge/close-volunteering", nil, nil))

	var sel dto.SelectContestantsResponse
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, base+"/challenge/select",
		dto.SelectContestantsRequest{Mode: "MANUAL", SelectedIDs: []string{"ana", "bia"}}, &sel))
	assert.ElementsMatch(t, []string{"ana", "bia"}, sel.Contestants)
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, base+"/challenge/start-betting", nil, nil))

	var bet dto.PlaceBetResponse
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, base+"/bets", dto.PlaceBetRequest{UserID: "caio", ContestantID: "ana", NewAmount: 100}, &bet))
	assert.Equal(t, "PENDING", bet.Status)
	assert.Equal(t, int64(900), bet.NewBalance)

	var preview dto.OddsPreviewResponse
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, base+"/odds?contestantId=bia&amount=100", nil, &preview))
	assert.Equal(t, int64(100), preview.TotalPool)
	assert.Equal(t, int64(200), preview.TotalPoolAfter)
	assert.Equal(t, 2.0, preview.Coefficient)
	assert.Equal(t, int64(200), preview.PotentialPayout)

	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, base+"/challenge/close-betting", nil, nil))

	var res dto.ResolveResponse
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, base+"/challenge/resolve", dto.ResolveRequest{WinnerID: "ana"}, &res))
	assert.Equal(t, "ana", res.WinnerID)
	assert.Equal(t, 1, res.WinnersCount)

	var sess dto.SessionResponse
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, base, nil, &sess))
	assert.Equal(t, "RESOLVED", sess.Status)
	assert.Equal(t, 3, sess.ParticipantCount)

	var snap map[string]any
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, base+"/ledger", nil, &snap))
	assert.Equal(t, created.SessionID, snap["session_id"])

	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, base+"/reset", nil, nil))
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, base, nil, &sess))
	assert.Equal(t, "OPEN", sess.Status)
}

func TestErrorResponses(t *testing.T) {
	srv := newTestServer(t)

	var created dto.CreateSessionResponse
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/v1/sessions", nil, &created))
	base := "/v1/sessions/" + created.SessionID

	var e dto.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodPost, base+"/participants", dto.JoinSessionRequest{FirstName: "x", Age: 20}, &e))
	assert.Equal(t, "INVALID_ARGUMENT", e.Error)

	e = dto.ErrorResponse{}
	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodPost, base+"/participants", dto.JoinSessionRequest{UserID: "u1", FirstName: "x", Age: 20}, &e))
	assert.Contains(t, e.Message, "LastName")

	e = dto.ErrorResponse{}
	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodPost, base+"/participants", dto.JoinSessionRequest{UserID: "u1", FirstName: "x", LastName: "y"}, &e))
	assert.Contains(t, e.Message, "Age")

	e = dto.ErrorResponse{}
	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodPost, base+"/challenge", dto.CreateChallengeRequest{Name: "x", RequiredCount: 11}, &e))
	assert.Equal(t, "INVALID_ARGUMENT", e.Error)

	e = dto.ErrorResponse{}
	assert.Equal(t, http.StatusConflict, call(t, srv, http.MethodPost, base+"/challenge/close-betting", nil, &e))
	assert.Equal(t, "FAILED_PRECONDITION", e.Error)
	assert.NotEmpty(t, e.Message)

	e = dto.ErrorResponse{}
	assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodGet, "/v1/sessions/NOPE99", nil, &e))
	assert.Equal(t, "NOT_FOUND", e.Error)

	e = dto.ErrorResponse{}
	assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodGet, base+"/participants/ghost", nil, &e))
	assert.Equal(t, "NOT_FOUND", e.Error)

	e = dto.ErrorResponse{}
	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodGet, base+"/odds?contestantId=a&amount=abc", nil, &e))

	e = dto.ErrorResponse{}
	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodPost, base+"/challenge/select", dto.SelectContestantsRequest{Mode: "LOTTERY"}, &e))
}
