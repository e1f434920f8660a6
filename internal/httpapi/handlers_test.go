package httpapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"kidboost.app/internal/auth"
	"kidboost.app/internal/events"
	"kidboost.app/internal/family"
	"kidboost.app/internal/storage"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("KIDBOOST_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	authSvc, err := auth.NewService(auth.NewMemStore())
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}
	avatars, err := storage.NewAvatarStore(t.TempDir())
	if err != nil {
		t.Fatalf("storage.NewAvatarStore: %v", err)
	}

	api := New(ReadyProbe{}, "test", authSvc, family.NewInMemory(), avatars, events.New())
	api.rateBurst = 1000
	api.ratePerSec = 1000

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, headers map[string]string) *http.Response {
	return c.do(http.MethodGet, path, nil, headers)
}

func (c *apiClient) put(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPut, path, body, headers)
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// registerUser walks the signup/confirm/login flow and returns the access
// token plus the user id.
func (c *apiClient) registerUser(email string, meta map[string]any) (token, userID string) {
	c.t.Helper()

	resp := c.post("/v1/auth/signup", map[string]any{
		"email":    email,
		"password": "secret123",
		"metadata": meta,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("signup status: %d", resp.StatusCode)
	}
	signup := decode[map[string]any](c.t, resp)

	resp = c.post("/v1/auth/confirm", map[string]any{"token": signup["confirm_token"]}, nil)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("confirm status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.post("/v1/auth/login", map[string]any{"email": email, "password": "secret123"}, nil)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login status: %d", resp.StatusCode)
	}
	login := decode[map[string]any](c.t, resp)
	session := login["session"].(map[string]any)
	return login["access_token"].(string), session["user_id"].(string)
}

func TestFamilyTaskFlow(t *testing.T) {
	api := newTestAPI(t)

	parentToken, parentID := api.registerUser("parent@example.com", map[string]any{
		"name": "Dana", "role": "parent",
	})
	parentAuth := bearerHeader(parentToken)

	// Parent adds a child record and a task for it.
	resp := api.post("/v1/children", map[string]any{"name": "Mia"}, parentAuth)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create child status: %d", resp.StatusCode)
	}
	child := decode[map[string]any](t, resp)
	childID := child["id"].(string)

	resp = api.post("/v1/tasks", map[string]any{
		"child_id": childID, "title": "Clean your room", "points": 10, "category": "chores",
	}, parentAuth)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create task status: %d", resp.StatusCode)
	}
	task := decode[map[string]any](t, resp)
	if task["status"] != "pending" {
		t.Fatalf("new task should be pending, got %v", task["status"])
	}
	taskID := task["id"].(string)

	// A child account signs up linked to the parent and self-registers. The
	// roster row it creates carries its own user id.
	childToken, childUserID := api.registerUser("kid@example.com", map[string]any{
		"name": "Leo", "role": "child", "parent_id": parentID,
	})
	childAuth := bearerHeader(childToken)

	resp = api.post("/v1/children", map[string]any{"id": childUserID, "name": "Leo"}, childAuth)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("self registration status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Registering again does not duplicate the roster entry.
	resp = api.post("/v1/children", map[string]any{"id": childUserID, "name": "Leo"}, childAuth)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("repeat self registration status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/children", childAuth)
	roster := decode[map[string]any](t, resp)
	if items := roster["items"].([]any); len(items) != 2 {
		t.Fatalf("expected 2 roster entries, got %d", len(items))
	}

	// The child cannot complete a sibling's task but completes its own... the
	// pending task belongs to Mia, so completion must be forbidden.
	resp = api.post("/v1/tasks/"+taskID+"/complete", nil, childAuth)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign task, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Assign a task to the child account's roster entry and complete it.
	resp = api.post("/v1/tasks", map[string]any{
		"child_id": childUserID, "title": "Do math homework", "points": 15, "category": "homework",
	}, parentAuth)
	ownTask := decode[map[string]any](t, resp)
	ownTaskID := ownTask["id"].(string)

	resp = api.post("/v1/tasks/"+ownTaskID+"/complete", nil, childAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete status: %d", resp.StatusCode)
	}
	completed := decode[map[string]any](t, resp)
	if completed["status"] != "completed" {
		t.Fatalf("expected completed, got %v", completed["status"])
	}

	// Double completion conflicts.
	resp = api.post("/v1/tasks/"+ownTaskID+"/complete", nil, childAuth)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on double complete, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Approval is parent-only.
	resp = api.post("/v1/tasks/"+ownTaskID+"/approve", nil, childAuth)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for child approval, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/tasks/"+ownTaskID+"/approve", nil, parentAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status: %d", resp.StatusCode)
	}
	approved := decode[map[string]any](t, resp)
	if approved["status"] != "approved" {
		t.Fatalf("expected approved, got %v", approved["status"])
	}
}

func TestRewardEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.registerUser("parent@example.com", map[string]any{"role": "parent"})
	hdr := bearerHeader(token)

	resp := api.post("/v1/rewards", map[string]any{"title": "Ice cream trip", "cost": 30}, hdr)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create reward status: %d", resp.StatusCode)
	}
	reward := decode[map[string]any](t, resp)
	id := reward["id"].(string)

	resp = api.put("/v1/rewards/"+id, map[string]any{"title": "Ice cream trip", "cost": 35}, hdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update reward status: %d", resp.StatusCode)
	}
	updated := decode[map[string]any](t, resp)
	if updated["cost"].(float64) != 35 {
		t.Fatalf("cost not updated: %v", updated["cost"])
	}

	resp = api.do(http.MethodDelete, "/v1/rewards/"+id, nil, hdr)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete reward status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/rewards", hdr)
	list := decode[map[string]any](t, resp)
	if items := list["items"].([]any); len(items) != 0 {
		t.Fatalf("expected empty catalog, got %v", items)
	}
}

func TestProfileEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token, userID := api.registerUser("parent@example.com", map[string]any{"name": "Dana", "role": "parent"})
	hdr := bearerHeader(token)

	// Missing profile is a plain 404; the client falls back to defaults.
	resp := api.get("/v1/profiles/"+userID, hdr)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before upsert, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.put("/v1/profiles/"+userID, map[string]any{"name": "Dana R", "avatar": "https://example.com/d.png"}, hdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put profile status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/profiles/"+userID, hdr)
	profile := decode[map[string]any](t, resp)
	if profile["name"] != "Dana R" {
		t.Fatalf("unexpected profile: %v", profile)
	}

	// Editing someone else's profile is forbidden.
	resp = api.put("/v1/profiles/other-user", map[string]any{"name": "Eve"}, hdr)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSessionAndMetadata(t *testing.T) {
	api := newTestAPI(t)
	token, userID := api.registerUser("parent@example.com", map[string]any{"name": "Dana", "role": "parent"})
	hdr := bearerHeader(token)

	resp := api.get("/v1/auth/session", hdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session status: %d", resp.StatusCode)
	}
	sess := decode[map[string]any](t, resp)
	if sess["user_id"] != userID {
		t.Fatalf("unexpected session user: %v", sess["user_id"])
	}

	resp = api.do(http.MethodPatch, "/v1/auth/metadata", map[string]any{"name": "Dana R"}, hdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metadata status: %d", resp.StatusCode)
	}
	updated := decode[map[string]any](t, resp)
	meta := updated["metadata"].(map[string]any)
	if meta["name"] != "Dana R" {
		t.Fatalf("metadata not updated: %v", meta)
	}
}

func TestRefreshAndLogout(t *testing.T) {
	api := newTestAPI(t)
	api.registerUser("parent@example.com", map[string]any{"role": "parent"})

	resp := api.post("/v1/auth/login", map[string]any{"email": "parent@example.com", "password": "secret123"}, nil)
	login := decode[map[string]any](t, resp)
	refreshToken := login["refresh_token"].(string)
	accessToken := login["access_token"].(string)

	resp = api.post("/v1/auth/refresh", map[string]any{"refresh_token": refreshToken}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status: %d", resp.StatusCode)
	}
	rotated := decode[map[string]any](t, resp)
	if rotated["refresh_token"] == refreshToken {
		t.Fatalf("refresh token was not rotated")
	}

	// The consumed refresh token cannot be replayed.
	resp = api.post("/v1/auth/refresh", map[string]any{"refresh_token": refreshToken}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 on replay, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/auth/logout", nil, bearerHeader(accessToken))
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	newRefresh := rotated["refresh_token"].(string)
	resp = api.post("/v1/auth/refresh", map[string]any{"refresh_token": newRefresh}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAPIEnforcesAuth(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/v1/children", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var errBody map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody["error"] == "" {
		t.Fatalf("expected error message")
	}
}

func TestSignupValidationStatus(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/signup", map[string]any{
		"email": "not-an-email", "password": "secret123",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	resp2 := api.post("/v1/auth/login", map[string]any{"email": "nobody@example.com", "password": "xxxxxx"}, nil)
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp2.StatusCode)
	}
}

func TestLoginBeforeConfirmationBlocked(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/signup", map[string]any{
		"email": "pending@example.com", "password": "secret123",
		"metadata": map[string]any{"role": "parent"},
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/auth/login", map[string]any{"email": "pending@example.com", "password": "secret123"}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for unconfirmed login, got %d", resp.StatusCode)
	}
}

func TestAvatarUploadAndServe(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.registerUser("parent@example.com", map[string]any{"role": "parent"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "selfie.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = part.Write([]byte("png-bytes"))
	_ = mw.Close()

	req, err := http.NewRequest(http.MethodPost, api.baseURL+"/v1/storage/avatars", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := api.client.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status: %d", resp.StatusCode)
	}
	uploaded := decode[map[string]any](t, resp)
	url := uploaded["url"].(string)

	// Assets are public, no token required.
	resp = api.get(url, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("serve status: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type: %s", ct)
	}
}
