package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/arnold/habitgrid-api/internal/database"
	"github.com/arnold/habitgrid-api/internal/docstore"
	"github.com/arnold/habitgrid-api/internal/habits"
	"github.com/arnold/habitgrid-api/internal/handlers"
	"github.com/arnold/habitgrid-api/internal/notify"
	"github.com/arnold/habitgrid-api/internal/notify/notifytest"
	"github.com/arnold/habitgrid-api/internal/reconcile"
	"github.com/arnold/habitgrid-api/internal/routes"
)

type testApp struct {
	app   *fiber.App
	rec   *notifytest.Recorder
	store *faultyStore
	token string
}

// faultyStore fails Update with updateErr when it is set.
type faultyStore struct {
	*docstore.Memory
	updateErr error
}

func (f *faultyStore) Update(ctx context.Context, path string, data map[string]interface{}) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.Memory.Update(ctx, path, data)
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	t.Setenv("JWT_SECRET", "handler-test")

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.MigrateDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	database.DB = db

	store := &faultyStore{Memory: docstore.NewMemory()}
	rec := notifytest.New()
	now := time.Date(2024, 1, 17, 9, 0, 0, 0, time.UTC)
	svc := habits.New(store, notify.NewManager(rec, nil), nil,
		habits.WithClock(func() time.Time { return now }),
		habits.WithLocation(time.UTC))
	reg := reconcile.NewSessions(store, time.Hour, nil)
	t.Cleanup(reg.Close)

	handlers.Configure(handlers.Deps{
		Habits:   svc,
		Direct:   reconcile.NewDirectCommit(store),
		Sessions: reg,
	})

	app := fiber.New()
	routes.Setup(app)

	ta := &testApp{app: app, rec: rec, store: store}
	var auth struct {
		Token string `json:"token"`
	}
	ta.do(t, "POST", "/api/auth/anonymous", nil, fiber.StatusCreated, &auth)
	if auth.Token == "" {
		t.Fatalf("anonymous login returned no token")
	}
	ta.token = auth.Token
	return ta
}

func (ta *testApp) do(t *testing.T, method, path string, body interface{}, want int, out interface{}) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", "en")
	if ta.token != "" {
		req.Header.Set("Authorization", "Bearer "+ta.token)
	}
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status %d, want %d: %s", method, path, resp.StatusCode, want, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("%s %s: decode %s: %v", method, path, data, err)
		}
	}
}

type habitResp struct {
	ID           string `json:"habitItemId"`
	Mission      string `json:"habitMission"`
	Achievements []struct {
		Year, Month, Day int
		Achievement      bool
	} `json:"achievements"`
	Week []struct {
		Day     int    `json:"day"`
		State   string `json:"state"`
		IsToday bool   `json:"isToday"`
	} `json:"week"`
}

func createHabit(t *testing.T, ta *testApp, mission string) habitResp {
	t.Helper()
	var h habitResp
	ta.do(t, "POST", "/api/habits", map[string]string{"habitMission": mission, "habitMissionDetail": "daily"}, fiber.StatusCreated, &h)
	return h
}

func TestRequiresAuth(t *testing.T) {
	ta := newTestApp(t)
	ta.token = ""
	ta.do(t, "GET", "/api/habits", nil, fiber.StatusUnauthorized, nil)
}

func TestHabitLifecycle(t *testing.T) {
	ta := newTestApp(t)
	h := createHabit(t, ta, "Read")
	if h.ID == "" || len(h.Achievements) != 1 || h.Achievements[0].Achievement {
		t.Fatalf("unexpected created habit %+v", h)
	}

	var list struct {
		Habits []habitResp `json:"habits"`
	}
	ta.do(t, "GET", "/api/habits", nil, fiber.StatusOK, &list)
	if len(list.Habits) != 1 || len(list.Habits[0].Week) != 7 {
		t.Fatalf("unexpected home list %+v", list)
	}
	// 2024-01-17 is a Wednesday, index 3 of the Sunday-first week.
	if today := list.Habits[0].Week[3]; !today.IsToday || today.State != "notAchieved" {
		t.Fatalf("today's slot = %+v", today)
	}

	var res reconcile.Result
	ta.do(t, "POST", "/api/habits/"+h.ID+"/toggle", map[string]int{"year": 2024, "month": 1, "day": 16}, fiber.StatusOK, &res)
	if !res.Changed || res.State.String() != "achieved" || len(res.Records) != 2 {
		t.Fatalf("unexpected toggle result %+v", res)
	}
	ta.do(t, "POST", "/api/habits/"+h.ID+"/toggle", map[string]int{"year": 2024, "month": 2, "day": 30}, fiber.StatusBadRequest, nil)

	var cal struct {
		Weeks []json.RawMessage `json:"weeks"`
	}
	ta.do(t, "GET", "/api/habits/"+h.ID+"/calendar?offset=-1", nil, fiber.StatusOK, &cal)
	if len(cal.Weeks) != 4 {
		t.Fatalf("calendar has %d weeks", len(cal.Weeks))
	}

	ta.do(t, "PUT", "/api/habits/"+h.ID, map[string]string{"habitMission": "123456789012345"}, fiber.StatusBadRequest, nil)
	ta.do(t, "DELETE", "/api/habits/"+h.ID, nil, fiber.StatusOK, nil)
	ta.do(t, "GET", "/api/habits/"+h.ID, nil, fiber.StatusNotFound, nil)
	ta.do(t, "POST", "/api/habits/"+h.ID+"/toggle", map[string]int{"year": 2024, "month": 1, "day": 16}, fiber.StatusNotFound, nil)
}

func TestToggleWriteFailureIsLocalized(t *testing.T) {
	ta := newTestApp(t)
	h := createHabit(t, ta, "Read")
	ta.store.updateErr = errors.New("disk full")

	var body struct {
		Error string `json:"error"`
	}
	ta.do(t, "POST", "/api/habits/"+h.ID+"/toggle", map[string]int{"year": 2024, "month": 1, "day": 16}, fiber.StatusInternalServerError, &body)
	if body.Error != "Failed to record achievement" {
		t.Fatalf("error = %q", body.Error)
	}

	ta.store.updateErr = nil
	var after habitResp
	ta.do(t, "GET", "/api/habits/"+h.ID, nil, fiber.StatusOK, &after)
	if len(after.Achievements) != 1 || after.Achievements[0].Day != 17 {
		t.Fatalf("failed toggle changed achievements: %+v", after.Achievements)
	}
}

func TestCreateHabitValidationIsLocalized(t *testing.T) {
	ta := newTestApp(t)
	var body struct {
		Error string `json:"error"`
	}
	ta.do(t, "POST", "/api/habits", map[string]string{"habitMission": ""}, fiber.StatusBadRequest, &body)
	if body.Error != "Habit is required" {
		t.Fatalf("error = %q", body.Error)
	}
	ta.do(t, "POST", "/api/habits?lang=ja", map[string]string{"habitMission": ""}, fiber.StatusBadRequest, &body)
	if body.Error != "習慣を入力してください" {
		t.Fatalf("error = %q", body.Error)
	}
}

type alarmResp struct {
	Alarm struct {
		ID              string    `json:"alarmId"`
		RepeatDayOfWeek []bool    `json:"repeatDayOfWeek"`
		AlarmIdentifier []*string `json:"alarmIdentifier"`
		Summary         string    `json:"summary"`
	} `json:"alarm"`
	Warning        string `json:"warning"`
	FailedWeekdays []int  `json:"failedWeekdays"`
}

func TestAlarmLifecycle(t *testing.T) {
	ta := newTestApp(t)
	h := createHabit(t, ta, "Run")
	base := "/api/habits/" + h.ID + "/alarms"

	var created alarmResp
	ta.do(t, "POST", base, map[string]interface{}{
		"hours": 6, "minutes": 30,
		"repeatDayOfWeek": []bool{true, true, true, true, true, true, true},
	}, fiber.StatusCreated, &created)
	if created.Alarm.Summary != "everyday" || ta.rec.LiveCount() != 7 || created.Warning != "" {
		t.Fatalf("unexpected alarm %+v, live %d", created, ta.rec.LiveCount())
	}

	ta.rec.FailWeekdays[3] = true
	var edited alarmResp
	ta.do(t, "PUT", base+"/"+created.Alarm.ID, map[string]interface{}{
		"hours": 7, "minutes": 0,
		"repeatDayOfWeek": []bool{false, true, true},
	}, fiber.StatusOK, &edited)
	if edited.Warning == "" || len(edited.FailedWeekdays) != 1 || edited.FailedWeekdays[0] != 2 {
		t.Fatalf("partial failure not reported: %+v", edited)
	}
	if edited.Alarm.RepeatDayOfWeek[2] || edited.Alarm.AlarmIdentifier[2] != nil || !edited.Alarm.RepeatDayOfWeek[1] {
		t.Fatalf("failed weekday kept in stored alarm: %+v", edited.Alarm)
	}
	if ta.rec.LiveCount() != 1 {
		t.Fatalf("expected only Monday registered, live %d", ta.rec.LiveCount())
	}

	ta.do(t, "POST", base, map[string]interface{}{"hours": 25, "minutes": 0, "repeatDayOfWeek": []bool{true}}, fiber.StatusBadRequest, nil)

	var list []struct {
		Summary string `json:"summary"`
	}
	ta.do(t, "GET", base, nil, fiber.StatusOK, &list)
	if len(list) != 1 || list[0].Summary != "custom" {
		t.Fatalf("unexpected alarm list %+v", list)
	}

	ta.do(t, "DELETE", base+"/"+created.Alarm.ID, nil, fiber.StatusOK, nil)
	ta.do(t, "GET", base+"/"+created.Alarm.ID, nil, fiber.StatusNotFound, nil)
	if ta.rec.LiveCount() != 0 {
		t.Fatalf("registrations left after delete: %d", ta.rec.LiveCount())
	}
}

type sessionResp struct {
	Session struct {
		ID         string `json:"id"`
		Phase      string `json:"phase"`
		HasChanges bool   `json:"hasChanges"`
	} `json:"session"`
	Weeks []json.RawMessage `json:"weeks"`
}

func TestSessionFlow(t *testing.T) {
	ta := newTestApp(t)
	h := createHabit(t, ta, "Read")

	var s sessionResp
	ta.do(t, "POST", "/api/habits/"+h.ID+"/sessions", nil, fiber.StatusCreated, &s)
	if s.Session.ID == "" || s.Session.HasChanges || len(s.Weeks) != 4 {
		t.Fatalf("unexpected session %+v", s)
	}
	base := "/api/sessions/" + s.Session.ID

	ta.do(t, "POST", base+"/save", nil, fiber.StatusConflict, nil)

	ta.do(t, "POST", base+"/toggle", map[string]int{"year": 2024, "month": 1, "day": 15}, fiber.StatusOK, &s)
	if !s.Session.HasChanges || s.Session.Phase != "editing" {
		t.Fatalf("toggle not tracked: %+v", s.Session)
	}

	var before habitResp
	ta.do(t, "GET", "/api/habits/"+h.ID, nil, fiber.StatusOK, &before)
	if len(before.Achievements) != 1 {
		t.Fatalf("session toggle leaked into the store")
	}

	ta.do(t, "PUT", base, map[string]string{"habitMission": "Read more"}, fiber.StatusOK, nil)
	ta.do(t, "POST", base+"/save", nil, fiber.StatusOK, &s)
	if s.Session.HasChanges {
		t.Fatalf("changes left after save: %+v", s.Session)
	}

	var after habitResp
	ta.do(t, "GET", "/api/habits/"+h.ID, nil, fiber.StatusOK, &after)
	if after.Mission != "Read more" || len(after.Achievements) != 2 {
		t.Fatalf("save not written: %+v", after)
	}

	ta.do(t, "DELETE", base, nil, fiber.StatusOK, nil)
	ta.do(t, "GET", base, nil, fiber.StatusNotFound, nil)
}

func TestSessionEndsWhenHabitDeleted(t *testing.T) {
	ta := newTestApp(t)
	h := createHabit(t, ta, "Read")

	var s sessionResp
	ta.do(t, "POST", "/api/habits/"+h.ID+"/sessions", nil, fiber.StatusCreated, &s)
	ta.do(t, "DELETE", "/api/habits/"+h.ID, nil, fiber.StatusOK, nil)
	ta.do(t, "GET", "/api/sessions/"+s.Session.ID, nil, fiber.StatusNotFound, nil)
	ta.do(t, "POST", "/api/habits/missing/sessions", nil, fiber.StatusNotFound, nil)
}

func TestDeviceTokenAndProfile(t *testing.T) {
	ta := newTestApp(t)
	ta.do(t, "POST", "/api/device-token", map[string]string{}, fiber.StatusBadRequest, nil)
	ta.do(t, "POST", "/api/device-token", map[string]string{"token": "fcm-1"}, fiber.StatusOK, nil)

	var me struct {
		AuthProvider string `json:"authProvider"`
		HasDevice    bool   `json:"hasDevice"`
		Language     string `json:"language"`
	}
	ta.do(t, "PUT", "/api/me", map[string]string{"language": "ja"}, fiber.StatusOK, &me)
	if me.AuthProvider != "anonymous" || !me.HasDevice || me.Language != "ja" {
		t.Fatalf("unexpected profile %+v", me)
	}
	ta.do(t, "PUT", "/api/me", map[string]string{"language": "xx"}, fiber.StatusBadRequest, nil)
}

func TestRegisterAndLogin(t *testing.T) {
	ta := newTestApp(t)
	ta.token = ""
	creds := map[string]string{"email": "Reader@Example.com", "password": "secret1"}
	ta.do(t, "POST", "/api/auth/register", creds, fiber.StatusCreated, nil)
	ta.do(t, "POST", "/api/auth/register", creds, fiber.StatusConflict, nil)
	ta.do(t, "POST", "/api/auth/login", map[string]string{"email": "reader@example.com", "password": "secret1"}, fiber.StatusOK, nil)
	ta.do(t, "POST", "/api/auth/login", map[string]string{"email": "reader@example.com", "password": "wrong"}, fiber.StatusUnauthorized, nil)
}
