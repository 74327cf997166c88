package webhook

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carezw/appointment-bot/internal/dialog"
	"github.com/carezw/appointment-bot/pkg/logging"
)

type recordingEngine struct {
	events []dialog.Event
	err    error
}

func (e *recordingEngine) HandleEvent(_ context.Context, ev dialog.Event) error {
	e.events = append(e.events, ev)
	return e.err
}

func TestVerifyHandshake(t *testing.T) {
	h := NewHandler(&recordingEngine{}, "secret-token", nil, logging.Default())

	req := httptest.NewRequest("GET",
		"/webhook?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())
}

func TestVerifyRejectsWrongToken(t *testing.T) {
	h := NewHandler(&recordingEngine{}, "secret-token", nil, logging.Default())

	req := httptest.NewRequest("GET",
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	assert.Equal(t, 403, rec.Code)
}

const textPayload = `{
  "entry": [{"changes": [{"value": {"messages": [
    {"from": "263770000000", "type": "text", "text": {"body": "hi"}}
  ]}}]}
]}`

const buttonPayload = `{
  "entry": [{"changes": [{"value": {"messages": [
    {"from": "263770000000", "type": "interactive",
     "interactive": {"type": "button_reply", "button_reply": {"id": "menu_book", "title": "Book"}}}
  ]}}]}
]}`

const listPayload = `{
  "entry": [{"changes": [{"value": {"messages": [
    {"from": "263770000000", "type": "interactive",
     "interactive": {"type": "list_reply", "list_reply": {"id": "service_consultation", "title": "Consultation"}}}
  ]}}]}
]}`

func receive(t *testing.T, h *Handler, payload string) int {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)
	return rec.Code
}

func TestReceiveTextMessage(t *testing.T) {
	eng := &recordingEngine{}
	h := NewHandler(eng, "t", nil, logging.Default())

	assert.Equal(t, 200, receive(t, h, textPayload))
	require.Len(t, eng.events, 1)
	assert.Equal(t, "263770000000", eng.events[0].Sender)
	assert.Equal(t, "hi", eng.events[0].Text)
}

func TestReceiveButtonReply(t *testing.T) {
	eng := &recordingEngine{}
	h := NewHandler(eng, "t", nil, logging.Default())

	assert.Equal(t, 200, receive(t, h, buttonPayload))
	require.Len(t, eng.events, 1)
	assert.Equal(t, "menu_book", eng.events[0].ButtonID)
	assert.Empty(t, eng.events[0].Text)
}

func TestReceiveListReply(t *testing.T) {
	eng := &recordingEngine{}
	h := NewHandler(eng, "t", nil, logging.Default())

	assert.Equal(t, 200, receive(t, h, listPayload))
	require.Len(t, eng.events, 1)
	assert.Equal(t, "service_consultation", eng.events[0].ListID)
}

func TestReceiveAlways200(t *testing.T) {
	eng := &recordingEngine{err: assert.AnError}
	h := NewHandler(eng, "t", nil, logging.Default())

	assert.Equal(t, 200, receive(t, h, textPayload))
	assert.Equal(t, 200, receive(t, h, "not json"))
	// Status callbacks carry no messages array; still acknowledged.
	assert.Equal(t, 200, receive(t, h, `{"entry": [{"changes": [{"value": {"statuses": []}}]}]}`))
}

func TestReceiveSkipsUnsupportedTypes(t *testing.T) {
	eng := &recordingEngine{}
	h := NewHandler(eng, "t", nil, logging.Default())

	payload := `{"entry": [{"changes": [{"value": {"messages": [
	  {"from": "263770000000", "type": "image"}
	]}}]}]}`
	assert.Equal(t, 200, receive(t, h, payload))
	assert.Empty(t, eng.events)
}
