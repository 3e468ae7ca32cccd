package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siminyang/aboutxtime/internal/blob/memblob"
	"github.com/siminyang/aboutxtime/internal/delivery"
	"github.com/siminyang/aboutxtime/internal/friendcache"
	"github.com/siminyang/aboutxtime/internal/model"
	"github.com/siminyang/aboutxtime/internal/services"
	"github.com/siminyang/aboutxtime/internal/store"
	"github.com/siminyang/aboutxtime/internal/store/memstore"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	st := memstore.New()
	blobs := memblob.New("http://localhost:8080")
	sync := delivery.New(st, blobs, nil, zerolog.Nop())

	router := NewRouter(Deps{
		Capsules: services.NewCapsuleService(st, sync),
		Users:    services.NewUserService(st, friendcache.New(16)),
		Pinger:   st.(store.HealthPinger),
		Blobs:    blobs,
		Log:      zerolog.Nop(),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, st
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func seedAPIUsers(t *testing.T, srv *httptest.Server) {
	t.Helper()
	birth := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, u := range []map[string]interface{}{
		{"id": "u-creator", "name": "Simin"},
		{"id": "u-recipient", "name": "Nita", "birthDate": birth},
	} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/users", u)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	}
}

func submitBody(open time.Time) map[string]interface{} {
	return map[string]interface{}{
		"creatorId":   "u-creator",
		"creatorName": "Simin",
		"recipient":   "u-recipient",
		"text":        "hello future",
		"fromWhom":    "Simin",
		"toWhom":      "Nita",
		"openDate":    open,
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/health/db")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestUserEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	seedAPIUsers(t, srv)

	resp, err := http.Get(srv.URL + "/api/users/u-creator")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	u := decodeBody[model.User](t, resp)
	assert.Equal(t, "Simin", u.Name)

	resp, err = http.Get(srv.URL + "/api/users/u-ghost")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/users", map[string]string{"name": "no id"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestSubmitAndFetchCapsule(t *testing.T) {
	srv, _ := newTestServer(t)
	seedAPIUsers(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/capsules/submit", submitBody(time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	c := decodeBody[model.Capsule](t, resp)
	require.NotEmpty(t, c.CapsuleID)
	assert.Equal(t, model.StatusPending, c.Recipients["u-recipient"].Status)

	resp, err := http.Get(srv.URL + "/api/capsules/" + c.CapsuleID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[model.Capsule](t, resp)
	assert.Equal(t, "hello future", got.Content["u-creator"].Text)

	resp, err = http.Get(srv.URL + "/api/users/u-recipient/capsules")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeBody[[]*model.Capsule](t, resp)
	assert.Len(t, list, 1)
}

func TestSubmitValidationFailure(t *testing.T) {
	srv, _ := newTestServer(t)
	seedAPIUsers(t, srv)

	body := submitBody(time.Now().Add(time.Hour))
	body["text"] = ""
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/capsules/submit", body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errResp := decodeBody[map[string]interface{}](t, resp)
	assert.Contains(t, errResp["message"], "message text is required")
}

func TestSubmitWithMedia(t *testing.T) {
	srv, _ := newTestServer(t)
	seedAPIUsers(t, srv)

	body := submitBody(time.Now().Add(time.Hour))
	body["imageData"] = base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/capsules/submit", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	c := decodeBody[model.Capsule](t, resp)
	imgURL := c.Content["u-creator"].ImgURL
	require.NotEmpty(t, imgURL)

	// The media route serves the uploaded object back.
	path := imgURL[strings.Index(imgURL, "/api/media/"):]
	mresp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer func() { _ = mresp.Body.Close() }()
	assert.Equal(t, http.StatusOK, mresp.StatusCode)
	assert.Equal(t, "image/jpeg", mresp.Header.Get("Content-Type"))
}

func TestSubmitRejectsBadBase64(t *testing.T) {
	srv, _ := newTestServer(t)
	seedAPIUsers(t, srv)

	body := submitBody(time.Now().Add(time.Hour))
	body["imageData"] = "not-base64!!!"
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/capsules/submit", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestOpenCapsuleFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	seedAPIUsers(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/capsules/submit", submitBody(time.Now().Add(11*time.Minute)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	c := decodeBody[model.Capsule](t, resp)

	// Before the open date the gate rejects.
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/capsules/%s/open", srv.URL, c.CapsuleID),
		map[string]string{"userId": "u-recipient"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestReplyEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	seedAPIUsers(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/capsules/submit", submitBody(time.Now().Add(time.Hour)))
	c := decodeBody[model.Capsule](t, resp)

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/capsules/%s/replies", srv.URL, c.CapsuleID),
		map[string]string{"userId": "u-recipient", "text": "got it"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	reply := decodeBody[model.ReplyMessage](t, resp)
	assert.NotEmpty(t, reply.ID)
	assert.Equal(t, "got it", reply.Text)

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/capsules/%s/replies", srv.URL, c.CapsuleID),
		map[string]string{"userId": "u-recipient", "text": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestPendingAndSearchEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	seedAPIUsers(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/capsules/submit", submitBody(time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/users/u-recipient/capsules/pending")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tray := decodeBody[[]*model.Capsule](t, resp)
	assert.Len(t, tray, 1)

	// Nothing opened yet, so search over opened capsules is empty.
	resp, err = http.Get(srv.URL + "/api/users/u-recipient/capsules/search?q=hello")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	groups := decodeBody[map[int][]*model.Capsule](t, resp)
	assert.Empty(t, groups)

	// Searching without a birth date on record is a validation error.
	resp, err = http.Get(srv.URL + "/api/users/u-creator/capsules/search?q=hello")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestDeleteEndpoints(t *testing.T) {
	srv, st := newTestServer(t)
	seedAPIUsers(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/capsules/submit", submitBody(time.Now().Add(time.Hour)))
	c := decodeBody[model.Capsule](t, resp)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/capsules/"+c.CapsuleID, nil)
	require.NoError(t, err)
	dresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, dresp.StatusCode)
	_ = dresp.Body.Close()

	// Friend entries were created by the submit fan-out; delete one.
	req, err = http.NewRequest(http.MethodDelete, srv.URL+"/api/users/u-creator/friends/u-recipient", nil)
	require.NoError(t, err)
	dresp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, dresp.StatusCode)
	_ = dresp.Body.Close()

	u, err := st.Users().Get(t.Context(), "u-creator")
	require.NoError(t, err)
	_, ok := u.FindFriend("u-recipient")
	assert.False(t, ok)
}

func TestWatchCapsuleStream(t *testing.T) {
	srv, _ := newTestServer(t)
	seedAPIUsers(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/capsules/submit", submitBody(time.Now().Add(time.Hour)))
	c := decodeBody[model.Capsule](t, resp)

	wresp, err := http.Get(srv.URL + "/api/capsules/" + c.CapsuleID + "/watch")
	require.NoError(t, err)
	defer func() { _ = wresp.Body.Close() }()
	require.Equal(t, http.StatusOK, wresp.StatusCode)
	assert.Equal(t, "text/event-stream", wresp.Header.Get("Content-Type"))

	// Trigger an update, then read one event off the stream.
	r2 := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/capsules/%s/replies", srv.URL, c.CapsuleID),
		map[string]string{"userId": "u-recipient", "text": "ping"})
	require.Equal(t, http.StatusCreated, r2.StatusCode)
	_ = r2.Body.Close()

	buf := make([]byte, 4096)
	n, err := wresp.Body.Read(buf)
	require.NoError(t, err)
	line := string(buf[:n])
	assert.True(t, strings.HasPrefix(line, "data: "), "got %q", line)
	assert.Contains(t, line, c.CapsuleID)
}
