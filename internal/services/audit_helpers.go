package services

import (
	"context"

	"github.com/byterank/byterank/internal/auditctx"
	"github.com/byterank/byterank/internal/models"
)

// recordAudit logs the supplied entry while tolerating audit failures. Caller
// details missing from the entry are taken from the request context.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}
	if caller, ok := auditctx.CallerFrom(ctx); ok {
		if entry.ActorID == "" {
			entry.ActorID = caller.ProfileID
		}
		if entry.Username == "" {
			entry.Username = caller.Username
		}
		if entry.IPAddress == "" {
			entry.IPAddress = caller.IPAddress
		}
		if entry.UserAgent == "" {
			entry.UserAgent = caller.UserAgent
		}
	}
	_ = audit.Log(ctx, entry)
}

// teamActivity is a successful action by actorID on a team.
func teamActivity(actorID, action, teamID string, metadata map[string]any) AuditEntry {
	return AuditEntry{
		ActorID:   actorID,
		Action:    action,
		Subject:   models.AuditSubjectTeam,
		SubjectID: teamID,
		Result:    "success",
		Metadata:  metadata,
	}
}

// profileActivity is a successful action by actorID concerning profileID.
func profileActivity(actorID, action, profileID string, metadata map[string]any) AuditEntry {
	return AuditEntry{
		ActorID:   actorID,
		Action:    action,
		Subject:   models.AuditSubjectProfile,
		SubjectID: profileID,
		Result:    "success",
		Metadata:  metadata,
	}
}
