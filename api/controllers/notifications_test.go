package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sokomart-dev/sokomart-backend/internal/notifications"
	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
	pkgerrors "github.com/sokomart-dev/sokomart-backend/pkg/errors"
)

type stubNotificationsService struct {
	listParams *notifications.ListParams
	listResult *notifications.ListResult

	markedUser uuid.UUID
	markedID   uuid.UUID
	markErr    error

	markedAll  bool
	allUpdated int64

	unread int64
}

func (s *stubNotificationsService) List(_ context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	s.listParams = &params
	return s.listResult, nil
}

func (s *stubNotificationsService) MarkRead(_ context.Context, userID, notificationID uuid.UUID) error {
	s.markedUser = userID
	s.markedID = notificationID
	return s.markErr
}

func (s *stubNotificationsService) MarkAllRead(_ context.Context, _ uuid.UUID) (int64, error) {
	s.markedAll = true
	return s.allUpdated, nil
}

func (s *stubNotificationsService) UnreadCount(context.Context, uuid.UUID) (int64, error) {
	return s.unread, nil
}

func TestListNotificationsForwardsFilters(t *testing.T) {
	userID := uuid.New()
	svc := &stubNotificationsService{listResult: &notifications.ListResult{}}
	handler := ListNotifications(svc, nil)

	req := authedRequest(http.MethodGet, "/notifications?limit=10&unreadOnly=true", nil, userID, enums.MemberRoleBuyer.String())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.listParams == nil {
		t.Fatalf("service never called")
	}
	if svc.listParams.UserID != userID {
		t.Fatalf("user id not taken from auth context")
	}
	if svc.listParams.Limit != 10 {
		t.Fatalf("limit not forwarded: %d", svc.listParams.Limit)
	}
	if !svc.listParams.UnreadOnly {
		t.Fatalf("unreadOnly filter not forwarded")
	}
}

func TestListNotificationsRejectsOversizeLimit(t *testing.T) {
	svc := &stubNotificationsService{listResult: &notifications.ListResult{}}
	handler := ListNotifications(svc, nil)

	req := authedRequest(http.MethodGet, "/notifications?limit=9999", nil, uuid.New(), enums.MemberRoleBuyer.String())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestMarkNotificationReadScopesToCaller(t *testing.T) {
	userID := uuid.New()
	notificationID := uuid.New()
	svc := &stubNotificationsService{}

	r := chi.NewRouter()
	r.Post("/notifications/{notificationId}/read", MarkNotificationRead(svc, nil))

	req := authedRequest(http.MethodPost, "/notifications/"+notificationID.String()+"/read", nil, userID, enums.MemberRoleBuyer.String())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.markedUser != userID || svc.markedID != notificationID {
		t.Fatalf("mark read not scoped to caller")
	}
}

func TestMarkNotificationReadSurfacesNotFound(t *testing.T) {
	svc := &stubNotificationsService{markErr: pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")}

	r := chi.NewRouter()
	r.Post("/notifications/{notificationId}/read", MarkNotificationRead(svc, nil))

	req := authedRequest(http.MethodPost, "/notifications/"+uuid.NewString()+"/read", nil, uuid.New(), enums.MemberRoleBuyer.String())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestMarkAllNotificationsReadReportsCount(t *testing.T) {
	svc := &stubNotificationsService{allUpdated: 4}
	handler := MarkAllNotificationsRead(svc, nil)

	req := authedRequest(http.MethodPost, "/notifications/read-all", nil, uuid.New(), enums.MemberRoleBuyer.String())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["updated"] != 4 {
		t.Fatalf("unexpected updated count %d", envelope.Data["updated"])
	}
}

func TestUnreadNotificationCount(t *testing.T) {
	svc := &stubNotificationsService{unread: 7}
	handler := UnreadNotificationCount(svc, nil)

	req := authedRequest(http.MethodGet, "/notifications/unread-count", nil, uuid.New(), enums.MemberRoleBuyer.String())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["unread"] != 7 {
		t.Fatalf("unexpected unread count %d", envelope.Data["unread"])
	}
}
