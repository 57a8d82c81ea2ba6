package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oitbase/roomledger/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeWsStreamsEvents(t *testing.T) {
	ta := newTestApp(t)
	_, cookie := ta.registerUser(t, "Ann", "ann@example.com")

	srv := httptest.NewServer(ta.mux)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{}
	header.Add("Cookie", cookie.String())

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	// the handler subscribes right after the handshake; give it a beat
	time.Sleep(50 * time.Millisecond)
	ta.bus.Publish(events.RoomJoined{AccountId: "a1", RoomId: "r1", IsAdmin: true})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var envelope struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg, &envelope))
	assert.Equal(t, "RoomJoined", envelope.Event)

	var data events.RoomJoined
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, "r1", data.RoomId)
	assert.True(t, data.IsAdmin)
}

func TestServeWsRequiresAuth(t *testing.T) {
	ta := newTestApp(t)

	srv := httptest.NewServer(ta.mux)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
