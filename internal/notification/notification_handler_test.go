package notification_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go-hrms/internal/notification"
	notificationerrors "go-hrms/internal/notification/errors"
	"go-hrms/internal/notification/mock"
	"go-hrms/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func newNotificationContext(method, target string, params gin.Params, userID string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, nil)
	c.Params = params
	c.Set("user_id_validated", userID)
	return c, w
}

func TestNotificationHandler_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mock.NewMockService(ctrl)
	h := notification.NewHandler(svc)
	userID := uuid.NewString()

	c, w := newNotificationContext(http.MethodGet, "/notifications?unread_only=true&page=2", nil, userID)

	svc.EXPECT().
		List(gomock.Any(), userID, notification.ListNotificationsQuery{Page: 2, UnreadOnly: true}).
		Return([]notification.NotificationResponse{}, response.NewPaginationMeta(0, 2, 20), nil)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNotificationHandler_List_BadQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := notification.NewHandler(mock.NewMockService(ctrl))

	c, w := newNotificationContext(http.MethodGet, "/notifications?limit=1000", nil, uuid.NewString())

	h.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotificationHandler_MarkRead_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mock.NewMockService(ctrl)
	h := notification.NewHandler(svc)
	id := uuid.NewString()

	c, w := newNotificationContext(http.MethodPatch, "/notifications/"+id+"/read", gin.Params{{Key: "id", Value: id}}, uuid.NewString())

	svc.EXPECT().MarkRead(gomock.Any(), gomock.Any(), id).Return(notification.NotificationResponse{}, notificationerrors.ErrNotificationNotFound)

	h.MarkRead(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
