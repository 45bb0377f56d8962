// internal/app/features/collab/handler.go
package collab

import (
	"net/http"
	"time"

	"github.com/dalemusser/blockhub/internal/app/policy/access"
	"github.com/dalemusser/blockhub/internal/app/policy/permissions"
	"github.com/dalemusser/blockhub/internal/app/realtime/hub"
	"github.com/dalemusser/blockhub/internal/app/realtime/presence"
	userstore "github.com/dalemusser/blockhub/internal/app/store/users"
	"github.com/dalemusser/blockhub/internal/app/system/auth"
	"github.com/dalemusser/blockhub/internal/app/system/httpjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler upgrades authorized clients into collaborative editing
// sessions on a project.
type Handler struct {
	DB       *mongo.Database
	Users    *userstore.Store
	Hub      *hub.Hub
	Presence *presence.Registry
	Log      *zap.Logger

	AutosaveInterval time.Duration
	PingInterval     time.Duration
	PingTimeout      time.Duration

	upgrader websocket.Upgrader
}

func NewHandler(db *mongo.Database, users *userstore.Store, h *hub.Hub, reg *presence.Registry, log *zap.Logger) *Handler {
	return &Handler{
		DB:               db,
		Users:            users,
		Hub:              h,
		Presence:         reg,
		Log:              log,
		AutosaveInterval: 30 * time.Second,
		PingInterval:     5 * time.Second,
		PingTimeout:      30 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// groupName is the broadcast/presence key for a project's session.
func groupName(projectID primitive.ObjectID) string {
	return "project_" + projectID.Hex()
}

// ServeSession handles GET /collab/projects/{projectID}.
//
// Admission happens before the websocket upgrade so rejected clients
// get a plain HTTP status and never exchange a frame. The published
// bypass is disabled here: being able to look at a published project
// does not admit you to its editing session.
func (h *Handler) ServeSession(w http.ResponseWriter, r *http.Request) {
	projectID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "projectID"))
	if err != nil {
		httpjson.NotFound(w)
		return
	}

	uid, ok := auth.CurrentUserID(r)
	if !ok {
		httpjson.Unauthorized(w)
		return
	}

	allowed, err := access.ProjectHasPermission(r.Context(), h.DB, projectID, uid,
		permissions.ProjectView, access.WithoutPublishedBypass())
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	if !allowed {
		httpjson.Unauthorized(w)
		return
	}

	user, err := h.Users.GetByID(r.Context(), uid)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own response.
		h.Log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	s := newSession(h, conn, groupName(projectID), user, uuid.NewString())
	s.run()
}
