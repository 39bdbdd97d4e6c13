package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"example.com/schedule/internal/auth"
	"example.com/schedule/internal/domain"
	"example.com/schedule/internal/persistence/memory"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	router        *mux.Router
	schedules     *memory.ScheduleRepository
	notifications *memory.NotificationRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	now, err := domain.ParseTimestamp("2024-06-01 06:30:00")
	require.NoError(t, err)

	schedules := memory.NewScheduleRepository()
	notifications := memory.NewNotificationRepository()
	service := domain.NewService(schedules, notifications, domain.WithClock(func() time.Time { return now }))

	router := mux.NewRouter()
	NewHandler(service).RegisterRoutes(router)
	return fixture{router: router, schedules: schedules, notifications: notifications}
}

func (f fixture) do(t *testing.T, userID int64, method, target string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if userID != 0 {
		req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}))
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	var env envelope
	if rr.Body.Len() > 0 && rr.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	}
	return rr, env
}

func TestCreateScheduleWithReminder(t *testing.T) {
	f := newFixture(t)

	rr, env := f.do(t, 1, http.MethodPost, "/schedule", map[string]any{
		"scheduled_date":   "2024-06-01",
		"scheduled_time":   "07:00",
		"activity_type":    "Exercise",
		"activity_details": "Morning Run",
		"notify":           true,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Equal(t, "success", env.Status)

	var created domain.ScheduledActivity
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.EqualValues(t, 1, created.UserID)
	require.Equal(t, "07:00:00", created.ScheduledTime)
	require.False(t, created.IsCompleted)

	stored := f.notifications.All()
	require.Len(t, stored, 1)
	require.Equal(t, "Reminder: Exercise (Morning Run) at 07:00:00", stored[0].Message)
}

func TestCreateScheduleValidation(t *testing.T) {
	f := newFixture(t)

	rr, env := f.do(t, 1, http.MethodPost, "/schedule/activities", map[string]any{
		"scheduled_date": "2024-06-01",
		"scheduled_time": "07:00:00",
		"activity_type":  "exercise",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "error", env.Status)
	require.Contains(t, env.Message, "Invalid activity_type")

	rr, env = f.do(t, 1, http.MethodPost, "/schedule", map[string]any{
		"scheduled_time": "07:00:00",
		"activity_type":  "Meal",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Missing required field: scheduled_date", env.Message)

	rr, _ = f.do(t, 0, http.MethodPost, "/schedule", map[string]any{})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestScheduleLifecycleIsOwnerScoped(t *testing.T) {
	f := newFixture(t)

	rr, env := f.do(t, 1, http.MethodPost, "/schedule", map[string]any{
		"scheduled_date": "2024-06-01",
		"scheduled_time": "22:00:00",
		"activity_type":  "Sleep",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	var created domain.ScheduledActivity
	require.NoError(t, json.Unmarshal(env.Data, &created))
	path := "/schedule/" + jsonID(created.ID)

	rr, env = f.do(t, 2, http.MethodGet, path, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "Schedule not found.", env.Message)

	rr, env = f.do(t, 1, http.MethodPatch, path, map[string]any{"is_completed": "yes"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "Schedule updated.", env.Message)
	var updated domain.ScheduledActivity
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	require.True(t, updated.IsCompleted)

	rr, _ = f.do(t, 1, http.MethodPatch, path, map[string]any{"is_completed": "abc"})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = f.do(t, 1, http.MethodPatch, path, map[string]any{"is_completed": 0})
	require.Equal(t, http.StatusOK, rr.Code)

	rr, env = f.do(t, 1, http.MethodPatch, path+"/toggle", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Schedule toggled.", env.Message)
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	require.True(t, updated.IsCompleted)

	rr, _ = f.do(t, 2, http.MethodPatch, path+"/toggle", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr, env = f.do(t, 1, http.MethodGet, "/schedule/date/2024-06-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var rows []domain.ScheduledActivity
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 1)

	rr, _ = f.do(t, 1, http.MethodGet, "/schedule/date/June-1", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = f.do(t, 2, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	rr, _ = f.do(t, 1, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr, _ = f.do(t, 1, http.MethodGet, path, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = f.do(t, 1, http.MethodGet, "/schedule/not-a-number", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestNotificationRoutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.notifications.Insert(ctx, 1, "Reminder: Meal at 06:00:00", "2024-06-01 06:00:00", domain.NotificationTypeReminder)
	require.NoError(t, err)

	rr, env := f.do(t, 1, http.MethodGet, "/schedule/notifications/due?now=2024-06-01%2007:00:00", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var due []domain.Notification
	require.NoError(t, json.Unmarshal(env.Data, &due))
	require.Len(t, due, 1)

	rr, env = f.do(t, 1, http.MethodGet, "/schedule/notifications/due?now=tomorrow", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "error", env.Status)

	rr, env = f.do(t, 1, http.MethodPatch, "/schedule/notifications/abc/read", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Invalid notification id. It must be a number.", env.Message)

	rr, env = f.do(t, 1, http.MethodPatch, "/schedule/notifications/"+jsonID(n.ID)+"/read", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Notification marked as read.", env.Message)

	// Unknown ids are acknowledged, never reported as missing.
	rr, env = f.do(t, 1, http.MethodPatch, "/schedule/notifications/9999/read", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "success", env.Status)

	// Read notifications drop out of the due list.
	rr, env = f.do(t, 1, http.MethodGet, "/schedule/notifications/due", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(env.Data, &due))
	require.Empty(t, due)
}

func TestUpcomingAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, s := range []domain.NewSchedule{
		{ScheduledDate: "2024-06-01", ScheduledTime: "07:00:00", ActivityType: domain.ActivityExercise},
		{ScheduledDate: "2024-06-01", ScheduledTime: "09:00:00", ActivityType: domain.ActivityMeal},
		{ScheduledDate: "2024-05-28", ScheduledTime: "09:00:00", ActivityType: domain.ActivityMeal},
	} {
		row, err := f.schedules.Create(ctx, 1, s)
		require.NoError(t, err)
		if s.ScheduledDate == "2024-05-28" {
			_, err = f.schedules.MarkCompleted(ctx, 1, row.ID, true)
			require.NoError(t, err)
		}
	}

	rr, env := f.do(t, 1, http.MethodGet, "/schedule/upcoming", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var rows []domain.ScheduledActivity
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 1)
	require.Equal(t, "07:00:00", rows[0].ScheduledTime)

	rr, _ = f.do(t, 1, http.MethodGet, "/schedule/upcoming?window=soon", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr, env = f.do(t, 1, http.MethodGet, "/schedule/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var stats domain.ScheduleStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	require.Equal(t, "2024-05-27", stats.WeekStart)
	require.Equal(t, "2024-06-02", stats.WeekEnd)
	require.Equal(t, 1, stats.StreakDays)
	require.Len(t, stats.WeeklyStats, 2)

	rr, env = f.do(t, 1, http.MethodGet, "/schedule/activities", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 3)
}

func TestStoreFailuresMapTo500(t *testing.T) {
	service := domain.NewService(failingSchedules{memory.NewScheduleRepository()}, memory.NewNotificationRepository())
	router := mux.NewRouter()
	NewHandler(service).RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodGet, "/schedule/activities", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{UserID: 1}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "connection reset")
}

func TestRouterRequiresBearerToken(t *testing.T) {
	service := domain.NewService(memory.NewScheduleRepository(), memory.NewNotificationRepository())
	router := NewRouter(NewHandler(service), auth.NewMiddleware(auth.Config{Secret: "secret"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/schedule/activities", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "3"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/schedule/activities", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

type failingSchedules struct {
	*memory.ScheduleRepository
}

func (failingSchedules) ListForUser(context.Context, int64) ([]domain.ScheduledActivity, error) {
	return nil, errors.New("connection reset")
}

func jsonID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestLegacyActivityRoutes(t *testing.T) {
	f := newFixture(t)

	rr, env := f.do(t, 1, http.MethodPost, "/schedule/activities", map[string]any{
		"scheduled_date":   "2024-06-01",
		"scheduled_time":   "18:00",
		"activity_type":    "Meal",
		"activity_details": "Dinner",
		"notes":            "no dairy",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	var created domain.ScheduledActivity
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Equal(t, "no dairy", created.Notes)
	path := "/schedule/activities/" + jsonID(created.ID)

	rr, _ = f.do(t, 2, http.MethodPatch, path+"/complete", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr, env = f.do(t, 1, http.MethodPatch, path+"/complete", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "Activity marked as completed.", env.Message)
	var updated domain.ScheduledActivity
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	require.True(t, updated.IsCompleted)

	rr, _ = f.do(t, 1, http.MethodPatch, "/schedule/activities/dinner/complete", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = f.do(t, 2, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	rr, env = f.do(t, 1, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Schedule deleted.", env.Message)

	rr, _ = f.do(t, 1, http.MethodGet, "/schedule/"+jsonID(created.ID), nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
