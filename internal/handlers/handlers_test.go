package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/suspense/internal/auth"
	"github.com/jason-s-yu/suspense/internal/game"
	"github.com/jason-s-yu/suspense/internal/hub"
	"github.com/jason-s-yu/suspense/internal/models"
	"github.com/jason-s-yu/suspense/internal/store"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := auth.Init(time.Hour); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func setupServer(t *testing.T) *Server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	mem := store.NewMemoryStore(quartz.NewReal())
	h := hub.New(logger)
	m := game.NewManager(game.ManagerConfig{
		Sessions:    &store.Sessions{Store: mem},
		Players:     &store.Players{Store: mem},
		Channel:     h,
		TurnTimeout: time.Second,
		Logger:      logger,
		InstantBots: true,
	})
	t.Cleanup(m.Close)
	return NewServer(m, h, logger)
}

// newPlayer registers a human directly and returns it with a token.
func newPlayer(t *testing.T, s *Server, name string) (*models.Player, string) {
	t.Helper()
	p, err := s.Manager.CreatePlayer(context.Background(), name, false)
	require.NoError(t, err)
	token, err := auth.CreateJWT(p.ID.String())
	require.NoError(t, err)
	return p, token
}

func do(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)
	return w
}

func createGame(t *testing.T, s *Server, p *models.Player, token string) uuid.UUID {
	t.Helper()
	w := do(t, s, http.MethodPost, "/api/v1/game/new", token, createGameRequest{PlayerID: p.ID, Turns: 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp createGameResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.GameID
}

func TestCreatePlayerHandler(t *testing.T) {
	s := setupServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/player/new?name=alice", "", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp createPlayerResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "alice", resp.Player.Name)
	assert.False(t, resp.Player.IsBot)

	sub, err := auth.AuthenticateJWT(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.Player.ID.String(), sub)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "auth_token", cookies[0].Name)
	assert.Equal(t, resp.Token, cookies[0].Value)

	bot := do(t, s, http.MethodPost, "/api/v1/player/new?isBot=true", "", nil)
	require.Equal(t, http.StatusCreated, bot.Code)
	assert.Empty(t, bot.Result().Cookies(), "creating a bot must not replace the caller's cookie")
	require.NoError(t, json.NewDecoder(bot.Body).Decode(&resp))
	assert.True(t, resp.Player.IsBot)
	assert.True(t, strings.HasPrefix(resp.Player.Name, "Bot_"))

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/v1/player/new", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/v1/player/new?name=x&isBot=maybe", "", nil).Code)
}

func TestCreateGameAuthorization(t *testing.T) {
	s := setupServer(t)
	alice, aliceToken := newPlayer(t, s, "alice")
	_, bobToken := newPlayer(t, s, "bob")

	body := createGameRequest{PlayerID: alice.ID, Turns: 3}
	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodPost, "/api/v1/game/new", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodPost, "/api/v1/game/new", "garbage", body).Code)
	assert.Equal(t, http.StatusForbidden, do(t, s, http.MethodPost, "/api/v1/game/new", bobToken, body).Code)

	bad := createGameRequest{PlayerID: alice.ID, Turns: 0}
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/v1/game/new", aliceToken, bad).Code)

	createGame(t, s, alice, aliceToken)
}

func TestGetGameHandler(t *testing.T) {
	s := setupServer(t)
	alice, token := newPlayer(t, s, "alice")
	gameID := createGame(t, s, alice, token)

	w := do(t, s, http.MethodGet, "/api/v1/game/"+gameID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view game.PublicState
	require.NoError(t, json.NewDecoder(w.Body).Decode(&view))
	assert.Equal(t, gameID, view.GameID)
	assert.False(t, view.Started)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/game/"+uuid.NewString(), "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/v1/game/not-a-uuid", "", nil).Code)
}

func TestTurnEndpointsBeforeStart(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()
	alice, token := newPlayer(t, s, "alice")
	gameID := createGame(t, s, alice, token)
	base := "/api/v1/game/" + gameID.String()

	// not seated yet
	draw := base + "/" + alice.ID.String() + "/draw-card"
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, draw, token, nil).Code)

	_, err := s.Manager.JoinGame(ctx, gameID, alice.ID, true, "")
	require.NoError(t, err)

	assert.Equal(t, http.StatusConflict, do(t, s, http.MethodGet, draw, token, nil).Code)

	move := models.Card{Suit: models.Hearts, Rank: models.Five}
	w := do(t, s, http.MethodPost, base+"/validate-move", token, validateMoveRequest{PlayerID: alice.ID, Move: &move})
	assert.Equal(t, http.StatusConflict, w.Code)

	var body errorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, game.ErrNotYourTurn.Error(), body.Error)
}

func TestBroadcastMessageHandler(t *testing.T) {
	s := setupServer(t)
	alice, token := newPlayer(t, s, "alice")
	_, bobToken := newPlayer(t, s, "bob")
	gameID := createGame(t, s, alice, token)
	_, err := s.Manager.JoinGame(context.Background(), gameID, alice.ID, true, "")
	require.NoError(t, err)

	path := "/api/v1/game/" + gameID.String() + "/" + alice.ID.String() + "/broadcast-message"
	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodPost, path, token, broadcastMessageRequest{Message: "hello"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, path, token, broadcastMessageRequest{Message: "  "}).Code)
	assert.Equal(t, http.StatusForbidden, do(t, s, http.MethodPost, path, bobToken, broadcastMessageRequest{Message: "hi"}).Code)
}

func dialGame(t *testing.T, srv *httptest.Server, token string, subprotocols ...string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/game/ws", &websocket.DialOptions{
		Subprotocols: subprotocols,
		HTTPHeader:   header,
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

func send(t *testing.T, c *websocket.Conn, typ string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data, err := json.Marshal(hub.Envelope{Type: typ, Payload: raw})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

// readUntil reads frames until one of type typ arrives.
func readUntil(t *testing.T, c *websocket.Conn, typ string) hub.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		_, data, err := c.Read(ctx)
		require.NoError(t, err)
		var env hub.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Type == typ {
			return env
		}
	}
}

func TestGameWSJoinAndPing(t *testing.T) {
	s := setupServer(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	alice, token := newPlayer(t, s, "alice")
	gameID := createGame(t, s, alice, token)
	c := dialGame(t, srv, token, "game")

	send(t, c, msgPing, nil)
	readUntil(t, c, msgPong)

	send(t, c, msgJoinGame, joinGamePayload{GameID: gameID, IsLeader: true})
	env := readUntil(t, c, msgGameJoined)
	var state game.PublicState
	require.NoError(t, json.Unmarshal(env.Payload, &state))
	require.Len(t, state.Seats, 1)
	assert.Equal(t, alice.ID, state.Seats[0].PlayerID)
	assert.True(t, state.Seats[0].IsLeader)

	// one seat is not enough to start
	send(t, c, msgStartGame, startGamePayload{GameID: gameID})
	env = readUntil(t, c, msgError)
	var errMsg wsErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &errMsg))
	assert.Equal(t, game.ErrNotEnoughPlayers.Error(), errMsg.Message)

	send(t, c, "shuffle", nil)
	env = readUntil(t, c, msgError)
	require.NoError(t, json.Unmarshal(env.Payload, &errMsg))
	assert.Contains(t, errMsg.Message, "unknown message type")

	require.NoError(t, c.Close(websocket.StatusNormalClosure, ""))
	assert.Eventually(t, func() bool { return s.Hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestGameWSRejectsBadHandshake(t *testing.T) {
	s := setupServer(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()
	_, token := newPlayer(t, s, "alice")

	closeCode := func(c *websocket.Conn) websocket.StatusCode {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _, err := c.Read(ctx)
		require.Error(t, err)
		return websocket.CloseStatus(err)
	}

	assert.Equal(t, BadSubprotocolError, closeCode(dialGame(t, srv, token)))
	assert.Equal(t, InvalidAuthTokenError, closeCode(dialGame(t, srv, "", "game")))

	stranger, err := auth.CreateJWT(uuid.NewString())
	require.NoError(t, err)
	assert.Equal(t, InvalidPlayerIDError, closeCode(dialGame(t, srv, stranger, "game")))
}

func TestGameWSLeaderSeatsBot(t *testing.T) {
	s := setupServer(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	alice, token := newPlayer(t, s, "alice")
	bob, _ := newPlayer(t, s, "bob")
	bot, err := s.Manager.CreatePlayer(context.Background(), "", true)
	require.NoError(t, err)
	gameID := createGame(t, s, alice, token)
	c := dialGame(t, srv, token, "game")

	send(t, c, msgJoinGame, joinGamePayload{GameID: gameID, IsLeader: true})
	readUntil(t, c, msgGameJoined)

	send(t, c, msgJoinGame, joinGamePayload{GameID: gameID, PlayerID: bot.ID})
	env := readUntil(t, c, msgGameJoined)
	var state game.PublicState
	require.NoError(t, json.Unmarshal(env.Payload, &state))
	require.Len(t, state.Seats, 2)
	assert.Equal(t, bot.ID, state.Seats[1].PlayerID)
	assert.True(t, state.Seats[1].IsBot)

	// humans join for themselves only
	send(t, c, msgJoinGame, joinGamePayload{GameID: gameID, PlayerID: bob.ID})
	env = readUntil(t, c, msgError)
	var errMsg wsErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &errMsg))
	assert.Contains(t, errMsg.Message, game.ErrNotABot.Error())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errMissingToken, http.StatusUnauthorized},
		{auth.ErrInvalidToken, http.StatusUnauthorized},
		{errForbidden, http.StatusForbidden},
		{game.ErrEntityNotFound, http.StatusNotFound},
		{game.ErrIllegalMove, http.StatusBadRequest},
		{game.ErrNotABot, http.StatusBadRequest},
		{game.ErrNotYourTurn, http.StatusConflict},
		{game.ErrDeckEmpty, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.want, statusFor(fmt.Errorf("wrapped: %w", tc.err)))
		})
	}
}
