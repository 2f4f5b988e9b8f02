package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/chatstore"
	"docchat/config"
	"docchat/store"
	"docchat/types"
)

func testComponents(t *testing.T) *Components {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.UploadDir = filepath.Join(dir, "uploads")
	cfg.ChatsDir = filepath.Join(dir, "chats")

	st := store.NewVectorStore(nil, nil)
	require.NoError(t, st.Commit(context.Background(), []types.ChunkRecord{
		{ID: "a", Text: "alpha", Vector: []float32{1, 0}},
		{ID: "b", Text: "beta", Vector: []float32{0, 1}},
	}))
	sessions, err := chatstore.New(cfg.ChatsDir, nil)
	require.NoError(t, err)

	return &Components{Config: cfg, Store: st, Sessions: sessions}
}

func TestServerRoutes(t *testing.T) {
	s := NewServer(testComponents(t), nil)
	app := s.App()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/check/healthy", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"ok","chunks":2}`, string(body))

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/chats", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess types.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	assert.NotEmpty(t, sess.ID)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/chats/"+sess.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)

	req := httptest.NewRequest(http.MethodOptions, "/api/chats", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestComponentsWatcher(t *testing.T) {
	c := testComponents(t)

	w, err := c.Watcher()
	require.NoError(t, err)
	assert.Nil(t, w)

	c.Config.WatchDir = filepath.Join(c.Config.DataDir, "inbox")
	c.Config.ArchiveDir = filepath.Join(c.Config.DataDir, "archive")
	c.Config.BadDir = filepath.Join(c.Config.DataDir, "bad")
	w, err = c.Watcher()
	require.NoError(t, err)
	assert.NotNil(t, w)
	assert.DirExists(t, c.Config.WatchDir)

	assert.NoError(t, c.Close())
}
