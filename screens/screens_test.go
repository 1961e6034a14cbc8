package screens

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storyserver/auth"
	"storyserver/middlewares"
	"storyserver/models"
	"storyserver/multiplayer/actions"
	"storyserver/multiplayer/generator"
	"storyserver/multiplayer/lifecycle"
	"storyserver/multiplayer/storage"
	"storyserver/multiplayer/storage/storagetest"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, req generator.Request) (*generator.Segment, error) {
	args := m.Called(ctx, req)
	seg, _ := args.Get(0).(*generator.Segment)
	return seg, args.Error(1)
}

type testServer struct {
	router  *gin.Engine
	rooms   *storagetest.Rooms
	stories *storagetest.Stories
	gen     *mockGenerator
	tokens  map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth.SetSecret("screens-secret")
	logger := zap.NewNop()

	ts := &testServer{
		rooms:   storagetest.NewRooms(),
		stories: storagetest.NewStories(),
		gen:     &mockGenerator{},
		tokens:  map[string]string{},
	}
	notifier := storagetest.NewNotifier()
	cache := storagetest.NewRoomCache()
	svc := &actions.Service{
		Rooms:     storage.NewNotifyingRooms(ts.rooms, cache, notifier, logger),
		Stories:   ts.stories,
		Generator: ts.gen,
		Cache:     cache,
		Copies:    &storagetest.CopyQueue{},
		Chat:      actions.NewChatLimiter(rate.Inf, 1),
		Logger:    logger,
	}

	ts.router = gin.New()
	upgrader := &websocket.Upgrader{}
	RegisterRoutes(ts.router, svc, notifier, upgrader, middlewares.AuthMiddleware(logger), logger)
	return ts
}

func (ts *testServer) token(t *testing.T, userID string) string {
	if tok, ok := ts.tokens[userID]; ok {
		return tok
	}
	tok, err := auth.GenerateToken(userID, strings.ToLower(userID)+"-name")
	require.NoError(t, err)
	ts.tokens[userID] = tok
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, userID string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token(t, userID))
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (ts *testServer) putPlayingRoom(t *testing.T, participants ...string) {
	t.Helper()
	story := &models.Story{
		UserID:        "H",
		Title:         "Horror Adventure",
		Genre:         "horror",
		Content:       "The lights flicker.",
		Choices:       []models.Choice{{ID: "c1", Text: "Hide"}, {ID: "c2", Text: "Run"}},
		IsMultiplayer: true,
		RoomCode:      "ROOM01",
	}
	require.NoError(t, ts.stories.Create(context.Background(), story))
	room := lifecycle.NewRoom("ROOM01", "H")
	room.Participants = participants
	room.Status = models.StatusPlaying
	room.SelectedGenre = "horror"
	room.StoryID = story.ID
	ts.rooms.Put(room)
}

func TestUnauthenticated(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/api/create-room", "/api/room/ROOM01/vote-genre"} {
		w, body := ts.do(t, http.MethodPost, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Unauthorized", body["error"])
	}
}

func TestRoomFlow(t *testing.T) {
	ts := newTestServer(t)

	w, body := ts.do(t, http.MethodPost, "/api/create-room", "H", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	code := body["roomCode"].(string)
	assert.Len(t, code, 6)
	assert.Equal(t, "waiting", body["status"])
	assert.Equal(t, []interface{}{}, body["participants"])

	w, body = ts.do(t, http.MethodPost, "/api/join-room", "P1", gin.H{"roomCode": strings.ToLower(code)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"P1"}, body["participants"])
	assert.Equal(t, false, body["isHost"])

	w, body = ts.do(t, http.MethodPost, "/api/room/"+code+"/vote-genre", "H", gin.H{"genreId": "horror"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"horror": []interface{}{"H"}}, body["genreVotes"])

	w, body = ts.do(t, http.MethodPost, "/api/room/"+code+"/start-story", "H", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Not all participants have voted", body["error"])
	assert.EqualValues(t, 2, body["participants"])
	assert.EqualValues(t, 1, body["voters"])
	assert.Equal(t, false, body["isTieBreakerVoting"])

	w, _ = ts.do(t, http.MethodPost, "/api/room/"+code+"/vote-genre", "P1", gin.H{"genreId": "horror"})
	require.Equal(t, http.StatusOK, w.Code)

	ts.gen.On("Generate", mock.Anything, mock.Anything).Return(&generator.Segment{
		Content: "A scream echoes.",
		Choices: []models.Choice{{ID: "c1", Text: "Investigate"}, {ID: "c2", Text: "Lock the door"}},
	}, nil).Once()

	w, body = ts.do(t, http.MethodPost, "/api/room/"+code+"/start-story", "H",
		gin.H{"character": "a night guard", "personalityTraits": gin.H{"temper": "calm"}})
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Equal(t, "horror", body["selectedGenre"])
	story := body["story"].(map[string]interface{})
	assert.Equal(t, "Horror Adventure", story["title"])
	assert.Equal(t, "A scream echoes.", story["content"])

	w, body = ts.do(t, http.MethodGet, "/api/room/"+code, "P1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "playing", body["status"])
	assert.Equal(t, false, body["isHost"])
	assert.Equal(t, map[string]interface{}{}, body["choiceVotes"])
	assert.Equal(t, []interface{}{}, body["messages"])
	assert.Nil(t, body["newHostNotification"])
	require.NotNil(t, body["story"])
	assert.Equal(t, "A scream echoes.", body["story"].(map[string]interface{})["content"])

	ts.do(t, http.MethodPost, "/api/room/"+code+"/vote-choice", "H", gin.H{"choiceId": "c1"})
	w, body = ts.do(t, http.MethodPost, "/api/room/"+code+"/vote-choice", "P1", gin.H{"choiceId": "c2"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["choiceVotes"], 2)

	w, body = ts.do(t, http.MethodPost, "/api/room/"+code+"/process-choice", "H", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["hasTie"])
	assert.Equal(t, true, body["isTieBreakerVoting"])
	assert.Equal(t, []interface{}{"c1", "c2"}, body["tiedChoices"])

	w, body = ts.do(t, http.MethodGet, "/api/room/"+code, "H", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["isHost"])
	assert.Equal(t, []interface{}{"c1", "c2"}, body["tiedChoicesForVoting"])
	assert.Equal(t, map[string]interface{}{}, body["choiceVotes"])
}

func TestGetRoom_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.putPlayingRoom(t, "P1")

	w, body := ts.do(t, http.MethodGet, "/api/room/NOPE00", "H", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Room not found", body["error"])

	w, _ = ts.do(t, http.MethodGet, "/api/room/ROOM01", "stranger", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestProcessChoice_Responses(t *testing.T) {
	ts := newTestServer(t)
	ts.putPlayingRoom(t, "P1")

	w, _ := ts.do(t, http.MethodPost, "/api/room/ROOM01/process-choice", "P1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body := ts.do(t, http.MethodPost, "/api/room/ROOM01/process-choice", "H", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, lifecycle.ErrNoVotes.Error(), body["error"])

	ts.do(t, http.MethodPost, "/api/room/ROOM01/vote-choice", "H", gin.H{"choiceId": "c2"})
	ts.do(t, http.MethodPost, "/api/room/ROOM01/vote-choice", "P1", gin.H{"choiceId": "c2"})

	ts.gen.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("model offline")).Once()
	w, body = ts.do(t, http.MethodPost, "/api/room/ROOM01/process-choice", "H", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", body["error"])
	assert.False(t, ts.rooms.Get("ROOM01").IsProcessing)

	ts.gen.On("Generate", mock.Anything, mock.Anything).Return(&generator.Segment{
		Content:              "You escape.",
		IsStoryComplete:      true,
		LastChoiceEvaluation: &models.ChoiceEvaluation{Quality: "excellent", Message: "Quick thinking."},
	}, nil).Once()
	w, body = ts.do(t, http.MethodPost, "/api/room/ROOM01/process-choice", "H", gin.H{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["hasTie"])
	assert.Equal(t, true, body["story"].(map[string]interface{})["isStoryComplete"])
	assert.Equal(t, "excellent", body["lastChoiceEvaluation"].(map[string]interface{})["quality"])
	assert.Equal(t, models.StatusCompleted, ts.rooms.Get("ROOM01").Status)
	assert.Len(t, ts.stories.ByRoom("ROOM01"), 2)
}

func TestLeaveAndTransferHost(t *testing.T) {
	ts := newTestServer(t)
	ts.putPlayingRoom(t, "P1", "P2")

	w, body := ts.do(t, http.MethodPost, "/api/room/ROOM01/leave", "H", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Transfer host to another participant before exiting", body["error"])

	w, _ = ts.do(t, http.MethodPost, "/api/room/ROOM01/transfer-host", "H", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = ts.do(t, http.MethodPost, "/api/room/ROOM01/transfer-host", "H", gin.H{"newHostId": "P1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "P1", body["hostId"])
	assert.Equal(t, []interface{}{"P2", "H"}, body["participants"])

	_, body = ts.do(t, http.MethodGet, "/api/room/ROOM01", "P1", nil)
	assert.Equal(t, map[string]interface{}{"userId": "P1"}, body["newHostNotification"])

	w, _ = ts.do(t, http.MethodPost, "/api/room/ROOM01/clear-host-notification", "P1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, body = ts.do(t, http.MethodGet, "/api/room/ROOM01", "P1", nil)
	assert.Nil(t, body["newHostNotification"])

	w, body = ts.do(t, http.MethodPost, "/api/room/ROOM01/leave", "H", gin.H{"saveAndExit": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["wasHost"])
	assert.Equal(t, true, body["storySaved"])
}

func TestSendChat(t *testing.T) {
	ts := newTestServer(t)
	ts.putPlayingRoom(t, "P1")

	w, body := ts.do(t, http.MethodPost, "/api/room/ROOM01/chat/send", "P1", gin.H{"message": "boo"})
	require.Equal(t, http.StatusOK, w.Code)
	msg := body["chatMessage"].(map[string]interface{})
	assert.Equal(t, "boo", msg["message"])
	assert.Equal(t, "p1-name", msg["username"])

	w, _ = ts.do(t, http.MethodPost, "/api/room/ROOM01/chat/send", "P1", gin.H{"message": strings.Repeat("x", 501)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/room/ROOM01/chat/send", "stranger", gin.H{"message": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGenres(t *testing.T) {
	ts := newTestServer(t)
	w, body := ts.do(t, http.MethodGet, "/api/genres", "H", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["genres"], len(generator.Genres()))
}

func TestRoomFeed(t *testing.T) {
	ts := newTestServer(t)
	ts.putPlayingRoom(t, "P1")
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/room/ROOM01/ws?token=" + ts.token(t, "P1")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var view RoomView
	require.NoError(t, conn.ReadJSON(&view))
	assert.Equal(t, "ROOM01", view.RoomCode)
	assert.Empty(t, view.Messages)

	w, _ := ts.do(t, http.MethodPost, "/api/room/ROOM01/chat/send", "H", gin.H{"message": "anyone there?"})
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, conn.ReadJSON(&view))
	require.Len(t, view.Messages, 1)
	assert.Equal(t, "anyone there?", view.Messages[0].Message)

	_, resp, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(srv.URL, "http")+"/api/room/ROOM01/ws?token="+ts.token(t, "stranger"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
