package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/jason-s-yu/suspense/internal/auth"
	"github.com/jason-s-yu/suspense/internal/models"
)

type createPlayerResponse struct {
	Player *models.Player `json:"player"`
	Token  string         `json:"token"`
}

// CreatePlayerHandler registers a player from ?name=&isBot= and returns it
// with a token. A human's token is also set as the auth_token cookie.
func (s *Server) CreatePlayerHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	isBot := false
	if v := q.Get("isBot"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: isBot must be a boolean", errBadRequest))
			return
		}
		isBot = b
	}

	p, err := s.Manager.CreatePlayer(r.Context(), q.Get("name"), isBot)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	token, err := auth.CreateJWT(p.ID.String())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// a leader creating bots keeps their own session cookie
	if !p.IsBot {
		http.SetCookie(w, &http.Cookie{
			Name:     "auth_token",
			Value:    token,
			HttpOnly: true,
			Path:     "/",
		})
	}
	writeJSON(w, http.StatusCreated, createPlayerResponse{Player: p, Token: token})
}
