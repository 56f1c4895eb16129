package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// StatsSnapshot mirrors the /stats response.
type StatsSnapshot struct {
	Day              string  `json:"day"`
	ActiveToday      int     `json:"active_today"`
	PointsToday      int64   `json:"points_today"`
	RewardsToday     int64   `json:"rewards_today"`
	GuessesStarted   int64   `json:"guesses_started"`
	GuessesResolved  int64   `json:"guesses_resolved"`
	GuessesWon       int64   `json:"guesses_won"`
	StreaksBroken    int64   `json:"streaks_broken"`
	SampledUsers     int     `json:"sampled_users"`
	TopScore         int64   `json:"top_score"`
	AvgCurrentStreak float64 `json:"avg_current_streak"`
	AvgLongestStreak float64 `json:"avg_longest_streak"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("request failed: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")
