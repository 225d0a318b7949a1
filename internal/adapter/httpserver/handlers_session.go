package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/tracklive/internal/domain"
)

type stateResponse struct {
	User       domain.UserID       `json:"user_id"`
	Selected   *domain.SetID       `json:"selected_set,omitempty"`
	Live       *domain.SetID       `json:"live_set,omitempty"`
	ShowsLive  bool                `json:"shows_live"`
	FeedState  string              `json:"feed_state"`
	NowPlaying *domain.TrackUpdate `json:"now_playing,omitempty"`
}

type setsResponse struct {
	User domain.UserID  `json:"user_id"`
	Sets []domain.SetID `json:"sets"`
}

func (s *Server) registerSessionRoutes() {
	s.echo.GET("/state", s.handleState)
	s.echo.GET("/sets", s.handleSets)
	s.echo.POST("/select/:set", s.handleSelect)
}

func (s *Server) handleState(c echo.Context) error {
	resp := stateResponse{
		User:      s.session.User(),
		FeedState: s.session.FeedState().String(),
	}
	if set, ok := s.session.Current(); ok {
		resp.Selected = &set
	}
	if live, ok := s.session.Live(); ok {
		resp.Live = &live
		resp.ShowsLive = resp.Selected != nil && *resp.Selected == live
	}
	if s.nowPlaying != nil {
		if update, ok := s.nowPlaying(); ok {
			resp.NowPlaying = &update
		}
	}

	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to write state response: %w", err)
	}
	return nil
}

func (s *Server) handleSets(c echo.Context) error {
	sets, err := s.session.ListSets(c.Request().Context())
	if err != nil {
		return HandleError(c, err)
	}

	resp := setsResponse{User: s.session.User(), Sets: []domain.SetID(sets)}
	if resp.Sets == nil {
		resp.Sets = []domain.SetID{}
	}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to write sets response: %w", err)
	}
	return nil
}

// handleSelect selects a set as if chosen interactively. "live" and 0 both
// mean the live set. An unknown set is reported in the body, not as an error.
func (s *Server) handleSelect(c echo.Context) error {
	raw := c.Param("set")
	set := domain.LiveSet
	if raw != "live" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 {
			return HandleValidationError(c, "set must be a non-negative integer or \"live\"")
		}
		set = domain.SetID(id)
	}

	if err := s.session.SelectSet(c.Request().Context(), set, true); err != nil {
		return HandleError(c, err)
	}
	return s.handleState(c)
}
