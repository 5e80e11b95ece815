package service

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dialGateway(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	gw := NewTutorGateway(env.teaching, env.doubts, 1<<20)
	srv := httptest.NewServer(http.HandlerFunc(gw.ServeWs))

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		gw.Stop()
		srv.Close()
	})
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, event string, data interface{}) frame {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": event, "data": data}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestGatewayStartLearningAndSimplify(t *testing.T) {
	env := newTestEnv(t)
	student := env.createStudent(t, 8)
	conn := dialGateway(t, env)

	lesson := map[string]string{"studentId": student.ID, "subject": "Biology", "chapter": "Photosynthesis"}

	f := roundTrip(t, conn, EventStartLearning, lesson)
	require.Equal(t, EventLessonStarted, f.Event, string(f.Data))
	var session TeachingSession
	require.NoError(t, json.Unmarshal(f.Data, &session))
	assert.False(t, session.FromCache)
	assert.NotZero(t, session.BlockID)
	assert.NotEmpty(t, session.Content.Introduction)

	f = roundTrip(t, conn, EventSimplifyRequested, lesson)
	require.Equal(t, EventLessonStarted, f.Event, string(f.Data))
	var simplified map[string]interface{}
	require.NoError(t, json.Unmarshal(f.Data, &simplified))
	assert.Equal(t, true, simplified["simplified"])
	assert.Equal(t, float64(1), simplified["clickCount"])
	assert.Equal(t, float64(10), simplified["simplifyPenaltyApplied"])
	assert.Equal(t, "MEDIUM", simplified["currentCluster"])
	assert.Contains(t, simplified, "blockId")
}

func TestGatewayAskDoubtTextAndVoice(t *testing.T) {
	env := newTestEnv(t)
	student := env.createStudent(t, 8)
	conn := dialGateway(t, env)

	f := roundTrip(t, conn, EventAskDoubt, map[string]string{
		"studentId": student.ID,
		"subject":   "Biology",
		"chapter":   "Photosynthesis",
		"inputType": "text",
		"text":      "Explain photosynthesis",
	})
	require.Equal(t, EventDoubtAnswered, f.Event, string(f.Data))
	var answer DoubtResult
	require.NoError(t, json.Unmarshal(f.Data, &answer))
	assert.False(t, answer.FromCache)
	assert.NotZero(t, answer.MessageID)
	assert.Equal(t, "answer 1 to Explain photosynthesis", answer.Response.Answer)

	f = roundTrip(t, conn, EventAskDoubt, map[string]string{
		"studentId":   student.ID,
		"subject":     "Biology",
		"chapter":     "Photosynthesis",
		"inputType":   "voice",
		"audioBase64": base64.StdEncoding.EncodeToString(wavBytes()),
	})
	require.Equal(t, EventDoubtAnswered, f.Event, string(f.Data))
	require.NoError(t, json.Unmarshal(f.Data, &answer))
	assert.Equal(t, "explain osmosis", answer.Question)
}

func TestGatewayReportsErrors(t *testing.T) {
	env := newTestEnv(t)
	student := env.createStudent(t, 8)
	conn := dialGateway(t, env)

	tests := []struct {
		name    string
		event   string
		data    interface{}
		message string
	}{
		{"unknown event", "dance", map[string]string{}, "unknown event"},
		{"missing student id", EventStartLearning, map[string]string{"subject": "Biology", "chapter": "Photosynthesis"}, "invalid data"},
		{"bad input type", EventAskDoubt, map[string]string{"studentId": student.ID, "subject": "Biology", "chapter": "Photosynthesis", "inputType": "video"}, "invalid data"},
		{"bad audio encoding", EventAskDoubt, map[string]string{"studentId": student.ID, "subject": "Biology", "chapter": "Photosynthesis", "inputType": "voice", "audioBase64": "***"}, "audioBase64 is not valid base64"},
		{"empty question", EventAskDoubt, map[string]string{"studentId": student.ID, "subject": "Biology", "chapter": "Photosynthesis", "inputType": "text"}, "failed to answer doubt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := roundTrip(t, conn, tt.event, tt.data)
			require.Equal(t, EventError, f.Event)
			var p ErrorPayload
			require.NoError(t, json.Unmarshal(f.Data, &p))
			assert.Equal(t, tt.event, p.Event)
			assert.Equal(t, tt.message, p.Message)
		})
	}
}
