package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/neurodash/internal/api"
	"github.com/mcoot/neurodash/internal/api/apierr"
	"github.com/mcoot/neurodash/internal/api/response"
	"github.com/mcoot/neurodash/internal/factory"
	"github.com/mcoot/neurodash/internal/sse"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.App
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// API tests are integration tests - use production factory with real random/clock
	app, err := factory.New(factory.Config{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		AuthService:    app.AuthService,
		DuelController: app.DuelController,
		BotService:     app.BotService,
		Subscriber:     app.Feed,
	})

	return &testServer{
		handler: router,
		app:     app,
	}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestCreateGuestPlayer(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]string{"display_name": "Alice"}
	rr := ts.request(http.MethodPost, "/api/v1/players/guest", body, "")

	assert.Equal(t, http.StatusCreated, rr.Code)

	var resp response.AuthResponse
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	require.NoError(t, err)

	assert.Equal(t, "Alice", resp.Player.DisplayName)
	assert.True(t, resp.Player.IsGuest)
	assert.NotEmpty(t, resp.SessionToken)
}

func TestCreateGuestRequiresName(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/players/guest", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, errorCode(t, rr))
}

func TestRequestBodyLimits(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/players/guest", map[string]string{
		"display_name": strings.Repeat("a", 8<<10),
	}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "too large")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/players/guest", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, errorCode(t, rec))
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	// Register
	registerBody := map[string]string{
		"username":     "alice",
		"password":     "secret123",
		"full_name":    "Alice Liddell",
		"display_name": "Alice",
	}
	rr := ts.request(http.MethodPost, "/api/v1/players/register", registerBody, "")
	assert.Equal(t, http.StatusCreated, rr.Code)

	var registerResp response.AuthResponse
	err := json.Unmarshal(rr.Body.Bytes(), &registerResp)
	require.NoError(t, err)
	assert.False(t, registerResp.Player.IsGuest)
	assert.Equal(t, "Alice Liddell", registerResp.Player.FullName)

	// Duplicate username
	rr = ts.request(http.MethodPost, "/api/v1/players/register", registerBody, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeUsernameExists, errorCode(t, rr))

	// Login
	loginBody := map[string]string{
		"username": "alice",
		"password": "secret123",
	}
	rr = ts.request(http.MethodPost, "/api/v1/players/login", loginBody, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var loginResp response.AuthResponse
	err = json.Unmarshal(rr.Body.Bytes(), &loginResp)
	require.NoError(t, err)
	assert.Equal(t, registerResp.Player.ID, loginResp.Player.ID)

	// Wrong password
	loginBody["password"] = "nope"
	rr = ts.request(http.MethodPost, "/api/v1/players/login", loginBody, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeInvalidCredentials, errorCode(t, rr))
}

func TestGetMe(t *testing.T) {
	ts := newTestServer(t)

	token, _ := createGuestPlayer(t, ts, "Bob")

	rr := ts.request(http.MethodGet, "/api/v1/players/me", nil, token)
	assert.Equal(t, http.StatusOK, rr.Code)

	var meResp response.Player
	err := json.Unmarshal(rr.Body.Bytes(), &meResp)
	require.NoError(t, err)
	assert.Equal(t, "Bob", meResp.DisplayName)
	assert.Zero(t, meResp.ReactionSamples)
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)

	token, _ := createGuestPlayer(t, ts, "Bob")

	rr := ts.request(http.MethodPost, "/api/v1/players/logout", nil, token)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/players/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	ts := newTestServer(t)

	// Try to get /me without token
	rr := ts.request(http.MethodGet, "/api/v1/players/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Try to create a duel without token
	rr = ts.request(http.MethodPost, "/api/v1/duels", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateAndJoinDuel(t *testing.T) {
	ts := newTestServer(t)

	token1, alice := createGuestPlayer(t, ts, "Alice")
	token2, bob := createGuestPlayer(t, ts, "Bob")

	created := createDuel(t, ts, token1)
	assert.Equal(t, "waiting", created.Status)
	assert.Equal(t, alice, created.Player1ID)
	assert.Len(t, created.RoomCode, 6)
	assert.Equal(t, 1, created.Round)

	// Codes are accepted in any case and with surrounding space
	code := " " + strings.ToLower(created.RoomCode) + " "
	rr := ts.request(http.MethodPost, "/api/v1/duels/join", map[string]string{"room_code": code}, token2)
	require.Equal(t, http.StatusOK, rr.Code)

	joined := decodeDuel(t, rr)
	assert.Equal(t, "ready", joined.Status)
	assert.Equal(t, bob, joined.Player2ID)

	rr = ts.request(http.MethodGet, "/api/v1/duels/"+created.RoomCode, nil, token1)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, bob, decodeDuel(t, rr).Player2ID)
}

func TestJoinErrors(t *testing.T) {
	ts := newTestServer(t)

	token1, _ := createGuestPlayer(t, ts, "Alice")
	token2, _ := createGuestPlayer(t, ts, "Bob")
	token3, _ := createGuestPlayer(t, ts, "Carol")

	created := createDuel(t, ts, token1)
	join := func(code, token string) *httptest.ResponseRecorder {
		return ts.request(http.MethodPost, "/api/v1/duels/join", map[string]string{"room_code": code}, token)
	}

	// Malformed code
	rr := join("AB-12", token2)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRoomCode, errorCode(t, rr))

	// Unknown code
	rr = join("ZZZZZZ", token2)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeDuelNotFound, errorCode(t, rr))

	// Own room
	rr = join(created.RoomCode, token1)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeSelfJoin, errorCode(t, rr))

	// Bob takes the seat, Carol finds the room gone
	require.Equal(t, http.StatusOK, join(created.RoomCode, token2).Code)
	rr = join(created.RoomCode, token3)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeDuelNotFound, errorCode(t, rr))

	// Rejoining is harmless
	rr = join(created.RoomCode, token2)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestOutsiderCannotAct(t *testing.T) {
	ts := newTestServer(t)

	token1, _ := createGuestPlayer(t, ts, "Alice")
	token3, _ := createGuestPlayer(t, ts, "Carol")

	created := createDuel(t, ts, token1)

	rr := ts.request(http.MethodPost, "/api/v1/duels/"+created.RoomCode+"/ready", nil, token3)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, apierr.CodeNotInDuel, errorCode(t, rr))
}

func TestReadyTwiceIsStale(t *testing.T) {
	ts := newTestServer(t)

	token1, _ := createGuestPlayer(t, ts, "Alice")
	token2, _ := createGuestPlayer(t, ts, "Bob")
	code := seatDuel(t, ts, token1, token2)

	rr := ts.request(http.MethodPost, "/api/v1/duels/"+code+"/ready", nil, token1)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get(response.StaleHeader))
	first := decodeDuel(t, rr)
	assert.True(t, first.Player1Ready)

	rr = ts.request(http.MethodPost, "/api/v1/duels/"+code+"/ready", nil, token1)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "true", rr.Header().Get(response.StaleHeader))
	assert.Equal(t, first.Version, decodeDuel(t, rr).Version)
}

func TestFullRoundFlow(t *testing.T) {
	ts := newTestServer(t)

	token1, _ := createGuestPlayer(t, ts, "Alice")
	token2, bob := createGuestPlayer(t, ts, "Bob")
	code := seatDuel(t, ts, token1, token2)
	base := "/api/v1/duels/" + code

	// Reporting before the round starts
	rr := ts.request(http.MethodPost, base+"/reaction", map[string]int64{"reaction_ms": 300}, token1)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeRoundNotStarted, errorCode(t, rr))

	// Starting before both are ready changes nothing
	rr = ts.request(http.MethodPost, base+"/start", nil, token1)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "true", rr.Header().Get(response.StaleHeader))

	require.Equal(t, http.StatusOK, ts.request(http.MethodPost, base+"/ready", nil, token1).Code)
	require.Equal(t, http.StatusOK, ts.request(http.MethodPost, base+"/ready", nil, token2).Code)

	rr = ts.request(http.MethodPost, base+"/start", nil, token2)
	require.Equal(t, http.StatusOK, rr.Code)
	started := decodeDuel(t, rr)
	assert.Equal(t, "started", started.Status)
	assert.NotNil(t, started.StartTimestamp)

	// Out of range
	rr = ts.request(http.MethodPost, base+"/reaction", map[string]int64{"reaction_ms": 0}, token1)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidReactionTime, errorCode(t, rr))

	rr = ts.request(http.MethodPost, base+"/reaction", map[string]int64{"reaction_ms": 320}, token1)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = ts.request(http.MethodPost, base+"/reaction", map[string]int64{"reaction_ms": 275}, token2)
	require.Equal(t, http.StatusOK, rr.Code)

	// A second report never overwrites the first
	rr = ts.request(http.MethodPost, base+"/reaction", map[string]int64{"reaction_ms": 100}, token1)
	assert.Equal(t, "true", rr.Header().Get(response.StaleHeader))
	assert.Equal(t, int64(320), *decodeDuel(t, rr).Player1ReactionTime)

	rr = ts.request(http.MethodPost, base+"/finish", nil, token1)
	require.Equal(t, http.StatusOK, rr.Code)
	finished := decodeDuel(t, rr)
	assert.Equal(t, "finished", finished.Status)
	assert.Equal(t, bob, finished.WinnerID)

	// The winner's average now reflects the round
	rr = ts.request(http.MethodGet, "/api/v1/players/me", nil, token2)
	require.Equal(t, http.StatusOK, rr.Code)
	var me response.Player
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, int64(275), me.AverageReactionTime)
	assert.Equal(t, int64(1), me.ReactionSamples)

	// Rematch resets the round in place
	rr = ts.request(http.MethodPost, base+"/rematch", map[string]int{"round": 1}, token2)
	require.Equal(t, http.StatusOK, rr.Code)
	rematch := decodeDuel(t, rr)
	assert.Equal(t, "ready", rematch.Status)
	assert.Equal(t, 2, rematch.Round)
	assert.Equal(t, finished.ID, rematch.ID)
	assert.Nil(t, rematch.Player1ReactionTime)
	assert.Empty(t, rematch.WinnerID)

	// The other player's rematch for the same round is stale
	rr = ts.request(http.MethodPost, base+"/rematch", map[string]int{"round": 1}, token1)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "true", rr.Header().Get(response.StaleHeader))
	assert.Equal(t, 2, decodeDuel(t, rr).Round)
}

func TestFalseStartLoses(t *testing.T) {
	ts := newTestServer(t)

	token1, alice := createGuestPlayer(t, ts, "Alice")
	token2, _ := createGuestPlayer(t, ts, "Bob")
	code := seatDuel(t, ts, token1, token2)
	base := "/api/v1/duels/" + code

	require.Equal(t, http.StatusOK, ts.request(http.MethodPost, base+"/ready", nil, token1).Code)
	require.Equal(t, http.StatusOK, ts.request(http.MethodPost, base+"/ready", nil, token2).Code)
	require.Equal(t, http.StatusOK, ts.request(http.MethodPost, base+"/start", nil, token1).Code)

	require.Equal(t, http.StatusOK, ts.request(http.MethodPost, base+"/false-start", nil, token2).Code)
	require.Equal(t, http.StatusOK, ts.request(http.MethodPost, base+"/reaction", map[string]int64{"reaction_ms": 900}, token1).Code)

	rr := ts.request(http.MethodPost, base+"/finish", nil, token2)
	require.Equal(t, http.StatusOK, rr.Code)
	finished := decodeDuel(t, rr)
	assert.True(t, finished.Player2FalseStart)
	assert.Equal(t, alice, finished.WinnerID)
}

func TestAddBot(t *testing.T) {
	ts := newTestServer(t)

	token1, _ := createGuestPlayer(t, ts, "Alice")
	token2, _ := createGuestPlayer(t, ts, "Bob")

	created := createDuel(t, ts, token1)
	base := "/api/v1/duels/" + created.RoomCode

	// Only the creator may add a bot
	rr := ts.request(http.MethodPost, base+"/bot", nil, token2)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.request(http.MethodPost, base+"/bot", map[string]string{"strategy": "psychic"}, token1)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeUnknownStrategy, errorCode(t, rr))

	rr = ts.request(http.MethodPost, base+"/bot", nil, token1)
	require.Equal(t, http.StatusCreated, rr.Code)
	var botPlayer response.Player
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &botPlayer))
	assert.True(t, botPlayer.IsBot)

	rr = ts.request(http.MethodGet, base, nil, token1)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, botPlayer.ID, decodeDuel(t, rr).Player2ID)
}

func TestDuelEvents(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	token1, _ := createGuestPlayer(t, ts, "Alice")
	token2, bob := createGuestPlayer(t, ts, "Bob")
	created := createDuel(t, ts, token1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/duels/"+created.RoomCode+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token1)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := sse.NewReader(resp.Body)

	// The stream opens with the current record
	event, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "duel", event.Name)
	var snapshot response.Duel
	require.NoError(t, json.Unmarshal([]byte(event.Data), &snapshot))
	assert.Equal(t, created.ID, snapshot.ID)
	assert.Equal(t, "waiting", snapshot.Status)

	// Then carries each write
	rr := ts.request(http.MethodPost, "/api/v1/duels/join", map[string]string{"room_code": created.RoomCode}, token2)
	require.Equal(t, http.StatusOK, rr.Code)

	event, err = reader.Next()
	require.NoError(t, err)
	var joined response.Duel
	require.NoError(t, json.Unmarshal([]byte(event.Data), &joined))
	assert.Equal(t, bob, joined.Player2ID)
	assert.Equal(t, snapshot.Version+1, joined.Version)
}

func TestDuelEventsUnknownRoom(t *testing.T) {
	ts := newTestServer(t)

	token, _ := createGuestPlayer(t, ts, "Alice")

	rr := ts.request(http.MethodGet, "/api/v1/duels/ZZZZZZ/events", nil, token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// Helper functions

func createGuestPlayer(t *testing.T, ts *testServer, displayName string) (string, string) {
	t.Helper()

	body := map[string]string{"display_name": displayName}
	rr := ts.request(http.MethodPost, "/api/v1/players/guest", body, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp response.AuthResponse
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	require.NoError(t, err)

	return resp.SessionToken, resp.Player.ID
}

func createDuel(t *testing.T, ts *testServer, token string) response.Duel {
	t.Helper()

	rr := ts.request(http.MethodPost, "/api/v1/duels", nil, token)
	require.Equal(t, http.StatusCreated, rr.Code)
	return decodeDuel(t, rr)
}

// seatDuel creates a room for the first player and joins the second
func seatDuel(t *testing.T, ts *testServer, creator, joiner string) string {
	t.Helper()

	code := createDuel(t, ts, creator).RoomCode
	rr := ts.request(http.MethodPost, "/api/v1/duels/join", map[string]string{"room_code": code}, joiner)
	require.Equal(t, http.StatusOK, rr.Code)
	return code
}

func decodeDuel(t *testing.T, rr *httptest.ResponseRecorder) response.Duel {
	t.Helper()

	var d response.Duel
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &d))
	return d
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()

	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error.Code
}
