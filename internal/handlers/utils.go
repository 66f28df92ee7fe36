package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/suspense/internal/auth"
	"github.com/jason-s-yu/suspense/internal/game"
)

// errMissingToken is returned when the request carries no auth token at all.
var errMissingToken = errors.New("missing auth token")

// errBadRequest marks a body or path parameter that could not be decoded.
var errBadRequest = errors.New("bad request")

// errForbidden is returned when the authenticated player acts for someone else.
var errForbidden = errors.New("token does not belong to this player")

// tokenFromRequest looks for the auth token in the Authorization header, the
// auth_token cookie and the token query parameter, in that order.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie("auth_token"); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

// authenticate returns the player id carried by the request's token.
func authenticate(r *http.Request) (uuid.UUID, error) {
	token := tokenFromRequest(r)
	if token == "" {
		return uuid.Nil, errMissingToken
	}
	sub, err := auth.AuthenticateJWT(token)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid player id in token", auth.ErrInvalidToken)
	}
	return id, nil
}

// authorize checks that the request is authenticated as playerID.
func authorize(r *http.Request, playerID uuid.UUID) error {
	id, err := authenticate(r)
	if err != nil {
		return err
	}
	if id != playerID {
		return errForbidden
	}
	return nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, game.ErrEntityNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, game.ErrIllegalMove),
		errors.Is(err, game.ErrPassWithoutDraw),
		errors.Is(err, game.ErrInvalidTurnLimit),
		errors.Is(err, game.ErrInvalidName),
		errors.Is(err, game.ErrNotABot),
		errors.Is(err, game.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrCapacityExceeded),
		errors.Is(err, game.ErrDuplicateLeader),
		errors.Is(err, game.ErrNotYourTurn),
		errors.Is(err, game.ErrAlreadyDrawn),
		errors.Is(err, game.ErrAlreadyStarted),
		errors.Is(err, game.ErrNotLeader),
		errors.Is(err, game.ErrNotEnoughPlayers),
		errors.Is(err, game.ErrDeckEmpty):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError writes err with the status it maps to. Internal errors are not echoed.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// pathUUID parses the named path wildcard as an id.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", errBadRequest, name)
	}
	return id, nil
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}
