package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardspace/cardspace/internal/auth"
	"github.com/cardspace/cardspace/internal/core"
	"github.com/cardspace/cardspace/internal/mapper"
	"github.com/cardspace/cardspace/internal/store"
)

type generateCall struct {
	text string
	pc   core.PromptContext
}

type fakeGenerator struct {
	mu    sync.Mutex
	reply string
	calls []generateCall
}

func (g *fakeGenerator) GenerateResponse(ctx context.Context, text string, pc core.PromptContext) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, generateCall{text: text, pc: pc})
	return g.reply
}

func (g *fakeGenerator) recorded() []generateCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]generateCall(nil), g.calls...)
}

func (g *fakeGenerator) GenerateCardSuggestions(ctx context.Context, content string, existing []mapper.Card, history []store.Message) string {
	return "suggested: " + content
}

// brokenStore fails every operation with a generic error.
type brokenStore struct{ *store.MemoryStore }

var errBroken = errors.New("Database error")

func (brokenStore) ListMessages(context.Context) ([]store.Message, error) { return nil, errBroken }
func (brokenStore) CreateMessage(context.Context, store.Role, string) (*store.Message, error) {
	return nil, errBroken
}
func (brokenStore) ListCards(context.Context) ([]store.Card, error) { return nil, errBroken }
func (brokenStore) CreateCard(context.Context, string, store.CardData) (*store.Card, error) {
	return nil, errBroken
}
func (brokenStore) UpdateCard(context.Context, int64, store.CardPatch) (*store.Card, error) {
	return nil, errBroken
}
func (brokenStore) DeleteCard(context.Context, int64) error { return errBroken }

type testServer struct {
	db  store.Store
	gen *fakeGenerator
	srv *httptest.Server
}

func newTestServer(t *testing.T, db store.Store, issuer *auth.Issuer) *testServer {
	t.Helper()
	gen := &fakeGenerator{reply: "Hello there!"}
	h := NewAPIHandler(core.NewChatService(db, gen), core.NewCardService(db, gen))
	srv := httptest.NewServer(NewRouter(h, issuer))
	t.Cleanup(srv.Close)
	return &testServer{db: db, gen: gen, srv: srv}
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*http.Response, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func (ts *testServer) seedCard(t *testing.T, messageID *int64) *store.Card {
	t.Helper()
	content := "Content"
	card, err := ts.db.CreateCard(context.Background(), "Card", store.CardData{Content: &content, MessageID: messageID})
	require.NoError(t, err)
	return card
}

func TestRoot(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore(), nil)

	resp, body := ts.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, greeting, body)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	resp, body = ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestMessages_ListEmpty(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore(), nil)

	resp, body := ts.do(t, http.MethodGet, "/messages", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, body)
}

func TestMessages_UserMessageReturnsReply(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore(), nil)

	resp, body := ts.do(t, http.MethodPost, "/messages", `{"role":"user","content":"Hello"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "assistant", out[0]["role"])
	assert.Equal(t, "Hello there!", out[0]["content"])
	assert.Equal(t, 2.0, out[0]["id"])
	assert.Contains(t, out[0], "createdAt")

	calls := ts.gen.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "Hello", calls[0].text)
	assert.Empty(t, calls[0].pc.Messages)

	resp, body = ts.do(t, http.MethodGet, "/messages", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "user", out[0]["role"])
	assert.Equal(t, "assistant", out[1]["role"])
}

func TestMessages_AssistantMessageIsStoredVerbatim(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore(), nil)

	resp, body := ts.do(t, http.MethodPost, "/messages", `{"role":"assistant","content":"X"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []store.Message
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "X", out[0].Content)
	assert.Equal(t, store.RoleAssistant, out[0].Role)
	assert.Empty(t, ts.gen.recorded())
}

func TestMessages_InvalidBody(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore(), nil)

	for _, body := range []string{
		`{"role":"system","content":"x"}`,
		`{"role":"user","content":5}`,
		`{"content":"x"}`,
		`[]`,
		`not json`,
	} {
		resp, out := ts.do(t, http.MethodPost, "/messages", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.JSONEq(t, `{"error":"Invalid message data"}`, out, body)
	}
	assert.Empty(t, ts.gen.recorded())
}

func TestCards_ListEmpty(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore(), nil)

	resp, body := ts.do(t, http.MethodGet, "/cards", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, body)
}

func TestCards_ListMapsExternalShape(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore(), nil)
	msg, err := ts.db.CreateMessage(context.Background(), store.RoleUser, "Hello")
	require.NoError(t, err)
	ts.seedCard(t, nil)
	ts.seedCard(t, &msg.ID)

	resp, body := ts.do(t, http.MethodGet, "/cards", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	require.Len(t, out, 2)
	assert.Equal(t, map[string]any{
		"id":       "1",
		"title":    "Card",
		"content":  "Content",
		"position": map[string]any{"x": 0.0, "y": 0.0},
		"size":     map[string]any{"width": 300.0, "height": 200.0},
	}, out[0])
	assert.Equal(t, "1", out[1]["messageId"])
}

func TestCards_Create(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore(), nil)

	resp, body := ts.do(t, http.MethodPost, "/cards",
		`{"title":"New Card","content":"New content","position":{"x":50,"y":50},"size":{"width":200,"height":200}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":"1","title":"New Card","content":"New content","position":{"x":50,"y":50},"size":{"width":200,"height":200}}`, body)

	resp, body = ts.do(t, http.MethodPost, "/cards",
		`{"title":"Card with Message","content":"Content","position":{"x":0,"y":0},"size":{"width":200,"height":200},"messageId":"5"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var card mapper.Card
	require.NoError(t, json.Unmarshal([]byte(body), &card))
	require.NotNil(t, card.MessageID)
	assert.Equal(t, "5", *card.MessageID)

	resp, body = ts.do(t, http.MethodPost, "/cards", `{"content":"numeric link","messageId":7}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal([]byte(body), &card))
	assert.Equal(t, "7", *card.MessageID)
}

func TestCards_CreateInvalid(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore(), nil)

	for _, body := range []string{
		`{"messageId":"abc"}`,
		`{"messageId":1.5}`,
		`{"position":{"x":"bad"}}`,
		`oops`,
	} {
		resp, out := ts.do(t, http.MethodPost, "/cards", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.JSONEq(t, `{"error":"Invalid card data"}`, out, body)
	}
}

func TestCards_ReplaceUnlinksMessage(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore(), nil)
	linked := int64(3)
	ts.seedCard(t, &linked)

	resp, body := ts.do(t, http.MethodPut, "/cards/1",
		`{"title":"Updated Card","content":"Updated content","position":{"x":100,"y":100},"size":{"width":250,"height":250}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":"1","title":"Updated Card","content":"Updated content","position":{"x":100,"y":100},"size":{"width":250,"height":250}}`, body)

	card, err := ts.db.GetCard(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, card.MessageID)

	resp, _ = ts.do(t, http.MethodPut, "/cards/42", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCards_Move(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore(), nil)
	ts.seedCard(t, nil)

	resp, body := ts.do(t, http.MethodPatch, "/cards/1/move", `{"position":{"x":200,"y":300}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var card mapper.Card
	require.NoError(t, json.Unmarshal([]byte(body), &card))
	assert.Equal(t, mapper.Position{X: 200, Y: 300}, card.Position)
	assert.Equal(t, mapper.Size{Width: 300, Height: 200}, card.Size)
	assert.Equal(t, "Content", card.Content)

	resp, _ = ts.do(t, http.MethodPatch, "/cards/999/move", `{"position":{"x":1,"y":2}}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCards_MoveInvalid(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore(), nil)
	ts.seedCard(t, nil)

	for _, body := range []string{
		`{"position":{"x":"bad","y":100}}`,
		`{"position":{"x":"100","y":100}}`,
		`{"position":{"y":100}}`,
		`{"position":{"x":100}}`,
		`{"position":null}`,
		`{"position":[1,2]}`,
		`{}`,
	} {
		resp, out := ts.do(t, http.MethodPatch, "/cards/1/move", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.JSONEq(t, `{"error":"Invalid position data"}`, out, body)
	}

	card, err := ts.db.GetCard(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, card.PosX)
}

func TestCards_Resize(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore(), nil)
	ts.seedCard(t, nil)

	resp, body := ts.do(t, http.MethodPatch, "/cards/1/resize", `{"size":{"width":300,"height":400}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var card mapper.Card
	require.NoError(t, json.Unmarshal([]byte(body), &card))
	assert.Equal(t, mapper.Size{Width: 300, Height: 400}, card.Size)

	for _, body := range []string{
		`{"size":{"width":"invalid","height":100}}`,
		`{"size":{"height":100}}`,
		`{"size":{"width":100}}`,
		`{"size":null}`,
	} {
		resp, out := ts.do(t, http.MethodPatch, "/cards/1/resize", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.JSONEq(t, `{"error":"Invalid size data"}`, out, body)
	}
}

func TestCards_UpdateContent(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore(), nil)
	ts.seedCard(t, nil)

	resp, body := ts.do(t, http.MethodPatch, "/cards/1/content", `{"content":"New content text"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var card mapper.Card
	require.NoError(t, json.Unmarshal([]byte(body), &card))
	assert.Equal(t, "New content text", card.Content)
	assert.Equal(t, "Card", card.Title)

	resp, body = ts.do(t, http.MethodPatch, "/cards/1/content", `{"content":""}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal([]byte(body), &card))
	assert.Equal(t, "", card.Content)

	stored, err := ts.db.GetCard(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "", stored.Content)

	for _, body := range []string{`{"content":123}`, `{"content":{"text":"object"}}`, `{"content":null}`, `{}`} {
		resp, out := ts.do(t, http.MethodPatch, "/cards/1/content", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.JSONEq(t, `{"error":"Invalid content data"}`, out, body)
	}
}

func TestCards_UpdateTitle(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore(), nil)
	ts.seedCard(t, nil)

	resp, body := ts.do(t, http.MethodPatch, "/cards/1/title", `{"title":"New Title"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var card mapper.Card
	require.NoError(t, json.Unmarshal([]byte(body), &card))
	assert.Equal(t, "New Title", card.Title)
	assert.Equal(t, "Content", card.Content)

	resp, body = ts.do(t, http.MethodPatch, "/cards/1/title", `{"title":""}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal([]byte(body), &card))
	assert.Equal(t, "", card.Title)

	for _, body := range []string{`{"title":456}`, `{"title":["title"]}`} {
		resp, out := ts.do(t, http.MethodPatch, "/cards/1/title", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.JSONEq(t, `{"error":"Invalid title data"}`, out, body)
	}
}

func TestCards_Delete(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore(), nil)
	ts.seedCard(t, nil)

	resp, body := ts.do(t, http.MethodDelete, "/cards/1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, body)

	resp, _ = ts.do(t, http.MethodDelete, "/cards/999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, "/cards/abc", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCards_Suggestions(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore(), nil)
	ts.seedCard(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/cards/1/suggestions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"suggestions":"suggested: Content"}`, body)

	resp, _ = ts.do(t, http.MethodGet, "/cards/9/suggestions", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIPrefixMirrorsRoutes(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore(), nil)

	resp, _ := ts.do(t, http.MethodPost, "/api/cards", `{"title":"via api"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := ts.do(t, http.MethodGet, "/api/cards/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"title":"via api"`)

	resp, _ = ts.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStoreErrors(t *testing.T) {
	ts := newTestServer(t, brokenStore{store.NewMemoryStore()}, nil)

	cases := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/messages", ""},
		{http.MethodPost, "/messages", `{"role":"user","content":"Hello"}`},
		{http.MethodGet, "/cards", ""},
		{http.MethodPost, "/cards", `{"title":"Test","content":"Test content","position":{"x":0,"y":0},"size":{"width":200,"height":200}}`},
		{http.MethodPatch, "/cards/1/move", `{"position":{"x":1,"y":2}}`},
		{http.MethodDelete, "/cards/1", ""},
	}
	for _, tc := range cases {
		resp, body := ts.do(t, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode, tc.path)
		assert.NotContains(t, body, errBroken.Error(), tc.path)
	}
	assert.Empty(t, ts.gen.recorded())
}

func TestAuth(t *testing.T) {
	issuer := auth.NewIssuer("secret")
	ts := newTestServer(t, store.NewMemoryStore(), issuer)

	resp, _ := ts.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := ts.do(t, http.MethodGet, "/cards", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Authorization header is required"}`, body)

	token, err := issuer.Generate("tester", time.Hour)
	require.NoError(t, err)

	for _, tc := range []struct {
		header string
		status int
	}{
		{"Bearer " + token, http.StatusOK},
		{"Bearer nope", http.StatusUnauthorized},
	} {
		req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/api/cards", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", tc.header)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tc.status, resp.StatusCode)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore(), nil)

	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/cards", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(requestIDHeader))
}
