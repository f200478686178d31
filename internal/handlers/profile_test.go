package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/byterank/byterank/internal/handlers/testutil"
)

type profilePayload struct {
	ID                  string  `json:"id"`
	Username            string  `json:"username"`
	Description         *string `json:"description"`
	GitHubUsername      *string `json:"github_username"`
	OnboardingCompleted bool    `json:"onboarding_completed"`
}

func TestProfileHandler_MeAndUpdate(t *testing.T) {
	env := testutil.NewEnv(t)
	oscar := env.SignIn("Oscar")
	env.SignIn("taken")

	resp := env.Do(http.MethodGet, "/api/profile", nil, oscar.Token, http.StatusOK)
	var me profilePayload
	testutil.DecodeInto(t, resp.Data, &me)
	require.Equal(t, oscar.ProfileID, me.ID)
	require.Equal(t, "oscar", me.Username)
	require.False(t, me.OnboardingCompleted)

	resp = env.Do(http.MethodPatch, "/api/profile", map[string]any{"username": "no"}, oscar.Token, http.StatusBadRequest)
	require.False(t, resp.Success)

	resp = env.Do(http.MethodPatch, "/api/profile", map[string]any{"username": "TAKEN"}, oscar.Token, http.StatusConflict)
	require.Equal(t, "USERNAME_TAKEN", resp.Error.Code)

	resp = env.Do(http.MethodPatch, "/api/profile", map[string]any{
		"description":     "writes Go",
		"github_username": "oscar-dev",
	}, oscar.Token, http.StatusOK)
	testutil.DecodeInto(t, resp.Data, &me)
	require.Equal(t, "writes Go", *me.Description)
	require.Equal(t, "oscar-dev", *me.GitHubUsername)

	resp = env.Do(http.MethodPost, "/api/profile/onboarding", map[string]any{"username": "oscar_g"}, oscar.Token, http.StatusOK)
	testutil.DecodeInto(t, resp.Data, &me)
	require.Equal(t, "oscar_g", me.Username)
	require.True(t, me.OnboardingCompleted)
}

func TestProfileHandler_SearchAndPublicProfile(t *testing.T) {
	env := testutil.NewEnv(t)
	pat := env.SignIn("pat")
	env.SignIn("patricia")
	env.SignIn("quinn")

	resp := env.Do(http.MethodGet, "/api/profiles?q=pat", nil, pat.Token, http.StatusOK)
	var found []profilePayload
	testutil.DecodeInto(t, resp.Data, &found)
	require.Len(t, found, 2)

	team := createTeam(t, env, pat, "Pat's crew", "open")

	resp = env.Do(http.MethodGet, "/api/profiles/"+pat.ProfileID, nil, pat.Token, http.StatusOK)
	var public struct {
		Profile profilePayload `json:"profile"`
		Teams   []struct {
			Team struct {
				ID string `json:"id"`
			} `json:"team"`
			Role string `json:"role"`
			Rank int    `json:"rank"`
		} `json:"teams"`
	}
	testutil.DecodeInto(t, resp.Data, &public)
	require.Equal(t, "pat", public.Profile.Username)
	require.Len(t, public.Teams, 1)
	require.Equal(t, team.ID, public.Teams[0].Team.ID)
	require.Equal(t, "owner", public.Teams[0].Role)
	require.Equal(t, 1, public.Teams[0].Rank)

	resp = env.Do(http.MethodGet, "/api/profiles/PATRICIA", nil, pat.Token, http.StatusOK)
	testutil.DecodeInto(t, resp.Data, &public)
	require.Equal(t, "patricia", public.Profile.Username)
	require.Empty(t, public.Teams)

	resp = env.Do(http.MethodGet, "/api/profiles/missing", nil, pat.Token, http.StatusNotFound)
	require.Equal(t, "PROFILE_NOT_FOUND", resp.Error.Code)
}

func TestProfileHandler_RejectsInvalidToken(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Do(http.MethodGet, "/api/profile", nil, "not-a-token", http.StatusUnauthorized)
	require.False(t, resp.Success)
}
