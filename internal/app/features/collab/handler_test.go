package collab

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/blockhub/internal/app/realtime/hub"
	"github.com/dalemusser/blockhub/internal/app/realtime/presence"
	userstore "github.com/dalemusser/blockhub/internal/app/store/users"
	"github.com/dalemusser/blockhub/internal/app/system/auth"
	"github.com/dalemusser/blockhub/internal/domain/models"
	"github.com/dalemusser/blockhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newCollabServer mounts ServeSession behind a header-driven test
// identity so the dialer can pick who it connects as.
func newCollabServer(t *testing.T, h *Handler, users map[string]models.User) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/collab/projects/{projectID}", func(w http.ResponseWriter, req *http.Request) {
		if username := req.Header.Get("X-Test-User"); username != "" {
			u := users[username]
			req = auth.WithTestUser(req, u.ID, u.Username)
		}
		h.ServeSession(w, req)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialCollab(srv *httptest.Server, projectHex, username string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/collab/projects/" + projectHex
	hdr := http.Header{}
	if username != "" {
		hdr.Set("X-Test-User", username)
	}
	return websocket.DefaultDialer.Dial(url, hdr)
}

func TestSessionAdmission(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	stranger := f.CreateUser(ctx, "stranger")
	project := f.CreateProject(ctx, "game", owner)
	published := f.CreateProject(ctx, "demo", owner)
	published = f.PublishProject(ctx, published)

	h := NewHandler(db, userstore.New(db), hub.New(), presence.NewRegistry(), zap.NewNop())
	srv := newCollabServer(t, h, map[string]models.User{
		"owner":    owner,
		"stranger": stranger,
	})

	t.Run("anonymous is rejected before any frame", func(t *testing.T) {
		_, resp, err := dialCollab(srv, project.ID.Hex(), "")
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("stranger is rejected", func(t *testing.T) {
		_, resp, err := dialCollab(srv, project.ID.Hex(), "stranger")
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("publication does not admit viewers", func(t *testing.T) {
		_, resp, err := dialCollab(srv, published.ID.Hex(), "stranger")
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("bad project id is not found", func(t *testing.T) {
		_, resp, err := dialCollab(srv, "not-an-objectid", "owner")
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("owner connects and receives the presence list", func(t *testing.T) {
		conn, _, err := dialCollab(srv, project.ID.Hex(), "owner")
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var ev map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, "user_list", ev["type"])
		users := ev["data"].([]interface{})
		require.Len(t, users, 1)
		assert.Equal(t, "owner", users[0].(map[string]interface{})["username"])
	})
}
