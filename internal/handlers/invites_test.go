package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/byterank/byterank/internal/handlers/testutil"
)

type requestPayload struct {
	ID          string `json:"id"`
	TeamID      string `json:"team_id"`
	RequesterID string `json:"requester_id"`
	Status      string `json:"status"`
}

func TestInviteHandler_JoinRequestWorkflow(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.SignIn("owner")
	dana := env.SignIn("dana")
	eve := env.SignIn("eve")

	team := createTeam(t, env, owner, "Closed shop", "closed")
	base := "/api/teams/" + team.ID

	resp := env.Do(http.MethodPost, base+"/requests", nil, dana.Token, http.StatusCreated)
	var request requestPayload
	testutil.DecodeInto(t, resp.Data, &request)
	require.Equal(t, "pending", request.Status)

	resp = env.Do(http.MethodPost, base+"/requests", nil, dana.Token, http.StatusConflict)
	require.Equal(t, "JOIN_REQUEST_PENDING", resp.Error.Code)

	resp = env.Do(http.MethodGet, "/api/requests/mine", nil, dana.Token, http.StatusOK)
	var mine []requestPayload
	testutil.DecodeInto(t, resp.Data, &mine)
	require.Len(t, mine, 1)

	// Outsiders cannot see or resolve the queue.
	env.Do(http.MethodGet, base+"/requests", nil, eve.Token, http.StatusForbidden)
	env.Do(http.MethodPost, "/api/requests/"+request.ID+"/approve", nil, eve.Token, http.StatusForbidden)

	resp = env.Do(http.MethodGet, base+"/requests", nil, owner.Token, http.StatusOK)
	var pending []requestPayload
	testutil.DecodeInto(t, resp.Data, &pending)
	require.Len(t, pending, 1)
	require.Equal(t, dana.ProfileID, pending[0].RequesterID)

	resp = env.Do(http.MethodPost, "/api/requests/"+request.ID+"/approve", nil, owner.Token, http.StatusOK)
	testutil.DecodeInto(t, resp.Data, &request)
	require.Equal(t, "approved", request.Status)

	resp = env.Do(http.MethodPost, "/api/requests/"+request.ID+"/reject", nil, owner.Token, http.StatusConflict)
	require.Equal(t, "REQUEST_RESOLVED", resp.Error.Code)

	resp = env.Do(http.MethodGet, base+"/members", nil, dana.Token, http.StatusOK)
	var members []memberPayload
	testutil.DecodeInto(t, resp.Data, &members)
	require.Len(t, members, 2)
}

func TestInviteHandler_RequestOnOpenTeam(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.SignIn("owner")
	frank := env.SignIn("frank")

	team := createTeam(t, env, owner, "Everyone", "open")
	resp := env.Do(http.MethodPost, "/api/teams/"+team.ID+"/requests", nil, frank.Token, http.StatusConflict)
	require.Equal(t, "TEAM_OPEN", resp.Error.Code)

	env.Do(http.MethodPost, "/api/requests/missing/approve", nil, owner.Token, http.StatusNotFound)
}

func TestInviteHandler_InvitationWorkflow(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.SignIn("owner")
	gina := env.SignIn("gina")

	team := createTeam(t, env, owner, "Invite only", "closed")
	base := "/api/teams/" + team.ID

	env.Do(http.MethodPost, base+"/invitations", map[string]any{}, owner.Token, http.StatusBadRequest)
	env.Do(http.MethodPost, base+"/invitations", map[string]any{"profile_id": gina.ProfileID}, gina.Token, http.StatusForbidden)

	resp := env.Do(http.MethodPost, base+"/invitations", map[string]any{"profile_id": gina.ProfileID}, owner.Token, http.StatusCreated)
	var invitation map[string]any
	testutil.DecodeInto(t, resp.Data, &invitation)
	invitationID, _ := invitation["id"].(string)
	require.NotEmpty(t, invitationID)

	resp = env.Do(http.MethodPost, base+"/invitations", map[string]any{"profile_id": gina.ProfileID}, owner.Token, http.StatusConflict)
	require.Equal(t, "INVITATION_PENDING", resp.Error.Code)

	resp = env.Do(http.MethodGet, "/api/invitations", nil, gina.Token, http.StatusOK)
	var invitations []map[string]any
	testutil.DecodeInto(t, resp.Data, &invitations)
	require.Len(t, invitations, 1)

	// Only the invited profile can accept.
	env.Do(http.MethodPost, "/api/invitations/"+invitationID+"/accept", nil, owner.Token, http.StatusNotFound)

	resp = env.Do(http.MethodPost, "/api/invitations/"+invitationID+"/accept", nil, gina.Token, http.StatusCreated)
	var membership memberPayload
	testutil.DecodeInto(t, resp.Data, &membership)
	require.Equal(t, "member", membership.Role)
	require.Equal(t, team.ID, membership.TeamID)

	resp = env.Do(http.MethodGet, "/api/invitations", nil, gina.Token, http.StatusOK)
	testutil.DecodeInto(t, resp.Data, &invitations)
	require.Empty(t, invitations)
}
