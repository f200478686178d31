package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/byterank/byterank/internal/leaderboard"
	"github.com/byterank/byterank/internal/services"
	"github.com/byterank/byterank/pkg/response"
)

// LeaderboardHandler serves team rankings.
type LeaderboardHandler struct {
	board *services.LeaderboardService
	now   func() time.Time
}

// NewLeaderboardHandler constructs a LeaderboardHandler.
func NewLeaderboardHandler(board *services.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{board: board, now: time.Now}
}

type leaderboardResponse struct {
	TeamID     string                 `json:"team_id"`
	WindowDays int                    `json:"window_days,omitempty"`
	Members    int                    `json:"members"`
	Standings  []leaderboard.Standing `json:"standings"`
}

// Team ranks every member of the team. With window_days it ranks by recent
// activity instead of lifetime totals; limit keeps only the leading entries.
// GET /api/teams/:id/leaderboard?window_days=&limit=
func (h *LeaderboardHandler) Team(c *gin.Context) {
	teamID := c.Param("id")
	days := parseIntQuery(c, "window_days", 0)

	var (
		standings leaderboard.Standings
		err       error
	)
	if days > 0 {
		standings, err = h.board.WindowedLeaderboard(requestContext(c), teamID, days, h.now())
	} else {
		standings, err = h.board.TeamLeaderboard(requestContext(c), teamID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, leaderboardResponse{
		TeamID:     teamID,
		WindowDays: days,
		Members:    standings.Len(),
		Standings:  standings.Top(parseIntQuery(c, "limit", 0)),
	})
}

// Me returns the caller's standing in the team.
// GET /api/teams/:id/leaderboard/me
func (h *LeaderboardHandler) Me(c *gin.Context) {
	standing, err := h.board.MemberRank(requestContext(c), c.Param("id"), currentProfileID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, standing)
}
