package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shaneholloman/automaker/internal/domain"
	"github.com/shaneholloman/automaker/internal/provider"
	"github.com/shaneholloman/automaker/internal/service"
	apiTypes "github.com/shaneholloman/automaker/pkg/api"
	realtimeTypes "github.com/shaneholloman/automaker/pkg/realtime"
)

func createRunViaHTTP(t *testing.T, srvURL string, req apiTypes.CreateRunRequest) apiTypes.RunResponse {
	t.Helper()
	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(srvURL+"/api/runs", "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST /api/runs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	var run apiTypes.RunResponse
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("decode run response: %v", err)
	}
	return run
}

func dialWS(t *testing.T, srvURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srvURL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// syncPing round-trips a ping. The server handles frames sequentially, so a
// pong proves every earlier frame on this connection was processed.
func syncPing(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	if err := conn.WriteJSON(realtimeTypes.ClientEnvelope{Type: realtimeTypes.ClientMessageTypePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong realtimeTypes.ServerEnvelope
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong.Type != realtimeTypes.ServerMessageTypePong {
		t.Fatalf("expected pong, got %q", pong.Type)
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) realtimeTypes.ServerEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env realtimeTypes.ServerEnvelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return env
}

func decodeRunMessage(t *testing.T, env realtimeTypes.ServerEnvelope) domain.ProviderMessage {
	t.Helper()
	raw, err := json.Marshal(env.Payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	var msg domain.ProviderMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return msg
}

func TestRunWebSocket_SubscribeStreamsRunMessages(t *testing.T) {
	gate := make(chan struct{})
	fake := &fakeProvider{
		name: "fake",
		execute: func(ctx context.Context, _ provider.ExecuteOptions) *domain.MessageStream {
			stream := domain.NewMessageStream()
			go func() {
				defer stream.Finish()
				<-gate
				stream.Send(ctx, domain.NewAssistantText("hello from the backend"))
				stream.Send(ctx, domain.NewResultMessage("hello from the backend"))
			}()
			return stream
		},
	}
	env := newTestEnv(t, service.CoordinatorConfig{}, fake)
	srv := httptest.NewServer(env.router())
	defer srv.Close()

	run := createRunViaHTTP(t, srv.URL, apiTypes.CreateRunRequest{Provider: "fake", Prompt: "say hello"})

	conn := dialWS(t, srv.URL)
	topic := "run:" + run.ID
	if err := conn.WriteJSON(realtimeTypes.ClientEnvelope{
		Type:   realtimeTypes.ClientMessageTypeSubscribe,
		Topics: []string{topic},
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	syncPing(t, conn)
	close(gate)

	first := readEnvelope(t, conn)
	if first.Type != realtimeTypes.ServerMessageTypeEvent {
		t.Fatalf("first envelope type = %q, want event", first.Type)
	}
	if first.Topic != topic {
		t.Fatalf("first envelope topic = %q, want %q", first.Topic, topic)
	}
	assistant := decodeRunMessage(t, first)
	if assistant.Type != domain.MessageAssistant {
		t.Fatalf("first message type = %q, want assistant", assistant.Type)
	}
	if assistant.PlainText() != "hello from the backend" {
		t.Errorf("assistant text = %q", assistant.PlainText())
	}

	second := readEnvelope(t, conn)
	result := decodeRunMessage(t, second)
	if result.Type != domain.MessageResult {
		t.Fatalf("second message type = %q, want result", result.Type)
	}
	if result.Result != "hello from the backend" {
		t.Errorf("result = %q", result.Result)
	}
}

func TestRunWebSocket_PingPong(t *testing.T) {
	env := newTestEnv(t, service.CoordinatorConfig{})
	srv := httptest.NewServer(env.router())
	defer srv.Close()

	conn := dialWS(t, srv.URL)
	syncPing(t, conn)
}

func TestRunWebSocket_RejectsUnknownTopic(t *testing.T) {
	env := newTestEnv(t, service.CoordinatorConfig{})
	srv := httptest.NewServer(env.router())
	defer srv.Close()

	conn := dialWS(t, srv.URL)
	if err := conn.WriteJSON(realtimeTypes.ClientEnvelope{
		Type:   realtimeTypes.ClientMessageTypeSubscribe,
		Topics: []string{"sessions.state"},
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	errEnv := readEnvelope(t, conn)
	if errEnv.Type != realtimeTypes.ServerMessageTypeError {
		t.Fatalf("envelope type = %q, want error", errEnv.Type)
	}
	if errEnv.Message != "unsupported topic: sessions.state" {
		t.Errorf("Message = %q", errEnv.Message)
	}
}

func TestRunWebSocket_InvalidJSON(t *testing.T) {
	env := newTestEnv(t, service.CoordinatorConfig{})
	srv := httptest.NewServer(env.router())
	defer srv.Close()

	conn := dialWS(t, srv.URL)
	if err := conn.WriteMessage(websocket.TextMessage, []byte("{bad")); err != nil {
		t.Fatalf("write raw frame: %v", err)
	}

	errEnv := readEnvelope(t, conn)
	if errEnv.Type != realtimeTypes.ServerMessageTypeError {
		t.Fatalf("envelope type = %q, want error", errEnv.Type)
	}
	if errEnv.Message != "invalid message" {
		t.Errorf("Message = %q", errEnv.Message)
	}
}

func TestRunWebSocket_UnsubscribeStopsDelivery(t *testing.T) {
	stage1 := make(chan struct{})
	stage2 := make(chan struct{})
	fake := &fakeProvider{
		name: "fake",
		execute: func(ctx context.Context, _ provider.ExecuteOptions) *domain.MessageStream {
			stream := domain.NewMessageStream()
			go func() {
				defer stream.Finish()
				<-stage1
				stream.Send(ctx, domain.NewAssistantText("first"))
				<-stage2
				stream.Send(ctx, domain.NewResultMessage("done"))
			}()
			return stream
		},
	}
	env := newTestEnv(t, service.CoordinatorConfig{}, fake)
	srv := httptest.NewServer(env.router())
	defer srv.Close()

	run := createRunViaHTTP(t, srv.URL, apiTypes.CreateRunRequest{Provider: "fake", Prompt: "two stage"})

	conn := dialWS(t, srv.URL)
	topic := "run:" + run.ID
	if err := conn.WriteJSON(realtimeTypes.ClientEnvelope{
		Type:   realtimeTypes.ClientMessageTypeSubscribe,
		Topics: []string{topic},
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	syncPing(t, conn)
	close(stage1)

	first := readEnvelope(t, conn)
	if first.Topic != topic {
		t.Fatalf("first envelope topic = %q", first.Topic)
	}

	if err := conn.WriteJSON(realtimeTypes.ClientEnvelope{
		Type:   realtimeTypes.ClientMessageTypeUnsubscribe,
		Topics: []string{topic},
	}); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	syncPing(t, conn)
	close(stage2)

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var msg realtimeTypes.ServerEnvelope
	if err := conn.ReadJSON(&msg); err == nil {
		t.Fatalf("expected no message after unsubscribe, got %+v", msg)
	}
}
