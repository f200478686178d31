package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/byterank/byterank/internal/auditctx"
	"github.com/byterank/byterank/internal/models"
)

func TestAuditServiceLogListAndExport(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	actor := f.profile(t, "auditor")

	err := f.audit.Log(ctx, AuditEntry{
		ActorID:   actor.ID,
		Username:  "auditor",
		Action:    "team.create",
		Subject:   models.AuditSubjectTeam,
		SubjectID: "team-1",
		Result:    "success",
		Metadata:  map[string]any{"name": "Ops"},
	})
	require.NoError(t, err)

	logs, total, err := f.audit.List(ctx, AuditListOptions{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, logs, 1)
	require.Equal(t, "team.create", logs[0].Action)
	require.NotNil(t, logs[0].ActorID)
	require.Equal(t, actor.ID, *logs[0].ActorID)

	var metadata map[string]any
	require.NoError(t, json.Unmarshal(logs[0].Metadata, &metadata))
	require.Equal(t, "Ops", metadata["name"])

	exported, err := f.audit.Export(ctx, AuditFilters{ActorID: actor.ID, Result: "success"})
	require.NoError(t, err)
	require.Len(t, exported, 1)

	none, err := f.audit.Export(ctx, AuditFilters{Action: "team.delete"})
	require.NoError(t, err)
	require.Empty(t, none)

	require.Error(t, f.audit.Log(ctx, AuditEntry{Result: "success"}))
	require.Error(t, f.audit.Log(ctx, AuditEntry{Action: "team.create", Result: "success", Subject: "org", SubjectID: "x"}))
	require.Error(t, f.audit.Log(ctx, AuditEntry{Action: "team.create", Result: "success", Subject: models.AuditSubjectTeam}))
}

func TestAuditServiceTeamFeedAndActionFamilies(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "owner")
	member := f.profile(t, "member")
	team := f.team(t, owner, models.AccessPolicyOpen)
	other := f.team(t, member, models.AccessPolicyOpen)
	f.join(t, team.ID, member)
	require.NoError(t, f.members.Promote(ctx, owner.ID, team.ID, member.ID))
	require.NoError(t, f.members.Demote(ctx, owner.ID, team.ID, member.ID))
	require.NoError(t, f.audit.Log(ctx, AuditEntry{Action: "team.member_count", Result: "success"}))

	feed, total, err := f.audit.TeamFeed(ctx, team.ID, AuditListOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
	for _, entry := range feed {
		require.Equal(t, models.AuditSubjectTeam, entry.SubjectType)
		require.Equal(t, team.ID, entry.SubjectID)
	}

	otherFeed, _, err := f.audit.TeamFeed(ctx, other.ID, AuditListOptions{})
	require.NoError(t, err)
	require.Len(t, otherFeed, 1)
	require.Equal(t, "team.create", otherFeed[0].Action)

	family, err := f.audit.Export(ctx, AuditFilters{ActionPrefix: "team.member."})
	require.NoError(t, err)
	require.Len(t, family, 2)

	literal, err := f.audit.Export(ctx, AuditFilters{ActionPrefix: "team%"})
	require.NoError(t, err)
	require.Empty(t, literal)

	profiles, err := f.audit.Export(ctx, AuditFilters{Subject: models.AuditSubjectProfile})
	require.NoError(t, err)
	require.Empty(t, profiles)
}

func TestAuditServiceCleanupOlderThan(t *testing.T) {
	f := newServiceFixture(t)

	oldLog := models.AuditLog{
		CreatedAt: time.Now().AddDate(0, 0, -10),
		Action:    "old.action",
		Result:    "success",
	}
	require.NoError(t, f.db.Create(&oldLog).Error)
	require.NoError(t, f.db.Create(&models.AuditLog{Action: "new.action", Result: "success"}).Error)

	ctx := context.Background()
	rows, err := f.audit.CleanupOlderThan(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)

	_, err = f.audit.CleanupOlderThan(ctx, 0)
	require.Error(t, err)
}

func TestRecordAuditFillsActorFromContext(t *testing.T) {
	f := newServiceFixture(t)
	actor := f.profile(t, "ctx-actor")

	ctx := auditctx.WithCaller(context.Background(), auditctx.Caller{
		ProfileID: actor.ID,
		Username:  "ctx-actor",
		IPAddress: "10.0.0.1",
		UserAgent: "tests",
	})
	recordAudit(f.audit, ctx, AuditEntry{Action: "profile.update", Result: "success"})

	var entry models.AuditLog
	require.NoError(t, f.db.Take(&entry, "action = ?", "profile.update").Error)
	require.NotNil(t, entry.ActorID)
	require.Equal(t, actor.ID, *entry.ActorID)
	require.Equal(t, "ctx-actor", entry.Username)
	require.Equal(t, "10.0.0.1", entry.IPAddress)
	require.Equal(t, "tests", entry.UserAgent)
}
