package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developia-II/slang-translator-backend/internal/models"
	"github.com/developia-II/slang-translator-backend/internal/services"
	"github.com/developia-II/slang-translator-backend/internal/store"
	"github.com/developia-II/slang-translator-backend/utils"
)

const testSecret = "test-secret"

// stubLLM answers translation prompts and validation prompts with fixed replies.
type stubLLM struct {
	mu        sync.Mutex
	translate string
	validate  string
	err       error
}

func (s *stubLLM) Name() string { return "stub" }

func (s *stubLLM) Complete(_ context.Context, req services.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if strings.HasPrefix(req.Prompt, "Translate the text") {
		return s.translate, nil
	}
	return s.validate, nil
}

func (s *stubLLM) set(fn func(*stubLLM)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

type eventLog struct {
	mu     sync.Mutex
	events []models.Event
}

func (l *eventLog) Publish(_ context.Context, ev models.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) Close() error { return nil }

func (l *eventLog) find(typ models.EventType) (models.Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range l.events {
		if ev.Type == typ {
			return ev, true
		}
	}
	return models.Event{}, false
}

type testEnv struct {
	app     *fiber.App
	llm     *stubLLM
	events  *eventLog
	lexicon *services.LexiconService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	ls := store.NewMemoryLexicon()
	for _, e := range []models.LexiconEntry{
		{Term: "no cap", Variants: []string{"nocap"}, Gloss: "for real, no lie", Confidence: 0.95, Momentum: 0.9, Active: true},
		{Term: "fire", Gloss: "excellent", Confidence: 0.9, Momentum: 0.8, Active: true},
	} {
		_, err := ls.Upsert(ctx, e)
		require.NoError(t, err)
	}
	lex := services.NewLexiconService(ls)
	_, err := lex.Rebuild(ctx)
	require.NoError(t, err)

	llm := &stubLLM{
		translate: `{"translation":"for real, that outfit is excellent","confidence":0.9}`,
		validate:  `{"confidence":0.5,"usageScore":4,"meaningMatches":true,"rationale":"some usage"}`,
	}
	events := &eventLog{}
	pipeline := services.NewValidationPipeline(services.PipelineDeps{
		Submissions: store.NewMemorySubmissions(),
		Lexicon:     lex,
		LLM:         llm,
		Notifier:    events,
	}, services.DefaultValidationConfig())
	translator := services.NewTranslator(lex, llm, services.DefaultTranslatorConfig())

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	New(translator, pipeline, lex, events, testSecret).Register(app.Group("/api/v1"))

	return &testEnv{app: app, llm: llm, events: events, lexicon: lex}
}

func userToken(t *testing.T, userID, role string, premium bool) string {
	t.Helper()
	tok, err := utils.GenerateJWT(userID, role, premium, testSecret)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			rd = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func submissionOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	sub, ok := body["submission"].(map[string]any)
	require.True(t, ok, "response has no submission: %v", body)
	return sub
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]string{"text": "no cap", "direction": "genz_to_english"}

	code, out := env.do(t, http.MethodPost, "/api/v1/translate", "", body)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Missing authorization header", out["error"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/translations/index", nil)
	req.Header.Set("Authorization", "Token abc")
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	forged, err := utils.GenerateJWT("u1", "admin", false, "other-secret")
	require.NoError(t, err)
	code, _ = env.do(t, http.MethodGet, "/api/v1/translations/index", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "admin"}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	code, _ = env.do(t, http.MethodGet, "/api/v1/translations/index", noUser, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	valid, err := utils.GenerateJWT("u1", "user", false, testSecret)
	require.NoError(t, err)
	code, _ = env.do(t, http.MethodGet, "/api/v1/translations/index", valid, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestTranslateHandler(t *testing.T) {
	env := newTestEnv(t)
	tok := userToken(t, "u1", "user", false)

	code, out := env.do(t, http.MethodPost, "/api/v1/translate", tok,
		map[string]string{"text": "no cap that fit is fire", "direction": "genz_to_english"})
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, true, out["billable"])

	tr := out["translation"].(map[string]any)
	assert.Equal(t, "for real, that outfit is excellent", tr["translatedText"])
	assert.Equal(t, false, tr["failed"])
	assert.Len(t, tr["matchedTerms"], 2)

	assert.Eventually(t, func() bool {
		ev, ok := env.events.find(models.EventTermsMatched)
		return ok && assert.ObjectsAreEqual([]string{"no cap", "fire"}, ev.Terms)
	}, time.Second, 10*time.Millisecond)
}

func TestTranslateHandler_Failures(t *testing.T) {
	env := newTestEnv(t)
	tok := userToken(t, "u1", "user", false)

	code, _ := env.do(t, http.MethodPost, "/api/v1/translate", tok, `{"text":`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/translate", tok, map[string]string{"text": "hi", "direction": "pig_latin"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/translate", tok,
		map[string]string{"text": strings.Repeat("a", 1001), "direction": "genz_to_english"})
	assert.Equal(t, http.StatusBadRequest, code)

	env.llm.set(func(s *stubLLM) { s.translate = `{"translation":"Slay!","confidence":0.9}` })
	code, out := env.do(t, http.MethodPost, "/api/v1/translate", tok, map[string]string{"text": "slay", "direction": "genz_to_english"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, out["billable"])
	assert.Equal(t, "same_text", out["translation"].(map[string]any)["failureReason"])

	env.llm.set(func(s *stubLLM) { s.err = errors.New("401 invalid key") })
	code, out = env.do(t, http.MethodPost, "/api/v1/translate", tok, map[string]string{"text": "slay", "direction": "genz_to_english"})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, out["error"], "upstream unavailable")
}

func TestSubmissionFlow(t *testing.T) {
	env := newTestEnv(t)
	author := userToken(t, "author", "user", true)
	voter := userToken(t, "voter", "user", false)
	admin := userToken(t, "admin-1", "admin", false)
	rizz := map[string]string{"term": "rizz", "meaning": "charisma", "example": "he has rizz", "context": "manual"}

	code, out := env.do(t, http.MethodPost, "/api/v1/slang/submit", voter, rizz)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Premium subscription required", out["error"])

	code, out = env.do(t, http.MethodPost, "/api/v1/slang/submit", author, rizz)
	require.Equal(t, http.StatusCreated, code, out)
	sub := submissionOf(t, out)
	assert.Equal(t, "PENDING_VOTE", sub["status"])
	assert.Equal(t, "rizz", sub["normalizedTerm"])
	id := sub["submissionId"].(string)
	require.NotEmpty(t, id)

	code, _ = env.do(t, http.MethodPost, "/api/v1/slang/submit", author, rizz)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = env.do(t, http.MethodPost, "/api/v1/slang/submit", author, map[string]string{"term": "gyat", "meaning": " "})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = env.do(t, http.MethodPost, "/api/v1/slang/submit", author, "not json")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/slang/upvote/"+id, author, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, out = env.do(t, http.MethodPost, "/api/v1/slang/upvote/"+id, voter, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, submissionOf(t, out)["upvotes"])
	code, _ = env.do(t, http.MethodPost, "/api/v1/slang/upvote/"+id, voter, nil)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = env.do(t, http.MethodPost, "/api/v1/slang/upvote/missing", voter, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, out = env.do(t, http.MethodGet, "/api/v1/slang/pending", voter, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, out["total"])
	assert.EqualValues(t, 1, out["page"])
	assert.EqualValues(t, 20, out["limit"])
	assert.EqualValues(t, 1, out["totalPages"])

	code, out = env.do(t, http.MethodGet, "/api/v1/slang/submissions/mine", voter, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, out["total"])
	code, out = env.do(t, http.MethodGet, "/api/v1/slang/submissions/mine?limit=500", author, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, out["total"])
	assert.EqualValues(t, 20, out["limit"])

	code, _ = env.do(t, http.MethodGet, "/api/v1/slang/rizz", voter, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/slang/admin/approve/"+id, voter, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, out = env.do(t, http.MethodPost, "/api/v1/slang/admin/approve/"+id, admin, nil)
	require.Equal(t, http.StatusOK, code, out)
	sub = submissionOf(t, out)
	assert.Equal(t, "ADMIN_APPROVED", sub["status"])
	assert.Equal(t, "admin-1", sub["reviewedBy"])

	code, _ = env.do(t, http.MethodPost, "/api/v1/slang/admin/reject/"+id, admin, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, out = env.do(t, http.MethodGet, "/api/v1/slang/rizz", voter, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "charisma", out["entry"].(map[string]any)["gloss"])
}

func TestLookupTerm(t *testing.T) {
	env := newTestEnv(t)
	tok := userToken(t, "u1", "user", false)

	code, out := env.do(t, http.MethodGet, "/api/v1/slang/no%20cap", tok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "no cap", out["entry"].(map[string]any)["term"])

	code, out = env.do(t, http.MethodGet, "/api/v1/slang/NOCAP", tok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "no cap", out["entry"].(map[string]any)["term"])

	code, _ = env.do(t, http.MethodGet, "/api/v1/slang/yeet", tok, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)
	author := userToken(t, "author", "user", true)
	admin := userToken(t, "admin-1", "admin", false)

	for _, term := range []string{"gyat", "delulu", "skibidi"} {
		code, _ := env.do(t, http.MethodPost, "/api/v1/slang/submit", author, map[string]string{"term": term, "meaning": "something"})
		require.Equal(t, http.StatusCreated, code)
	}
	code, out := env.do(t, http.MethodGet, "/api/v1/admin/submissions?status=PENDING_VOTE&limit=2", admin, nil)
	require.Equal(t, http.StatusOK, code)
	id := out["submissions"].([]any)[0].(map[string]any)["submissionId"].(string)
	code, _ = env.do(t, http.MethodPost, "/api/v1/slang/admin/reject/"+id, admin, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, http.MethodGet, "/api/v1/admin/stats", author, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, out = env.do(t, http.MethodGet, "/api/v1/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, code)
	stats := out["stats"].(map[string]any)
	assert.EqualValues(t, 3, stats["totalSubmissions"])
	assert.EqualValues(t, 2, stats["lexiconEntries"])
	byStatus := stats["byStatus"].(map[string]any)
	assert.EqualValues(t, 2, byStatus["PENDING_VOTE"])
	assert.EqualValues(t, 1, byStatus["ADMIN_REJECTED"])

	code, out = env.do(t, http.MethodGet, "/api/v1/admin/submissions?status=PENDING_VOTE&limit=1&page=2", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, out["total"])
	assert.EqualValues(t, 2, out["totalPages"])
	assert.Len(t, out["submissions"], 1)

	code, _ = env.do(t, http.MethodGet, "/api/v1/admin/submissions?status=BOGUS", admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, out = env.do(t, http.MethodGet, "/api/v1/admin/submissions", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, out["total"])
}

func TestIndexInfo(t *testing.T) {
	env := newTestEnv(t)
	code, out := env.do(t, http.MethodGet, "/api/v1/translations/index", userToken(t, "u1", "user", false), nil)
	require.Equal(t, http.StatusOK, code)
	idx := out["index"].(map[string]any)
	assert.EqualValues(t, env.lexicon.Snapshot().Version, idx["version"])
	assert.EqualValues(t, 2, idx["entries"])
	assert.EqualValues(t, 3, idx["slangPatterns"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrInvalidInput, http.StatusBadRequest},
		{models.ErrNotFound, http.StatusNotFound},
		{models.ErrSelfVote, http.StatusForbidden},
		{models.ErrDuplicateSubmission, http.StatusConflict},
		{models.ErrAlreadyVoted, http.StatusConflict},
		{models.ErrInvalidTransition, http.StatusConflict},
		{models.ErrRateLimited, http.StatusTooManyRequests},
		{models.ErrUpstreamUnavailable, http.StatusServiceUnavailable},
		{fiber.ErrMethodNotAllowed, http.StatusMethodNotAllowed},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		wrapped := fmt.Errorf("context: %w", tt.err)
		assert.Equal(t, tt.want, statusFor(wrapped), tt.err.Error())
	}
}
