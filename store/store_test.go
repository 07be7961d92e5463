package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/farmavigil/farmavigil-api/store/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	s, err := Open(DriverSQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, s.AutoMigrate())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newUser(t *testing.T, s *Store, email string) *models.User {
	t.Helper()
	user, err := s.EnsureUser(context.Background(), email, "Test User")
	require.NoError(t, err)
	return user
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")
	assert.Error(t, err)
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.EnsureUser(ctx, "ana@example.org", "Ana")
	require.NoError(t, err)
	second, err := s.EnsureUser(ctx, "ana@example.org", "Another name")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ana", second.Name)

	found, err := s.UserByEmail(ctx, "ana@example.org")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	_, err = s.UserByEmail(ctx, "nobody@example.org")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestDashboardsSingleDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := newUser(t, s, "dash@example.org")
	other := newUser(t, s, "other@example.org")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first := &models.Dashboard{UserID: user.ID, Name: "Overview", Config: datatypes.JSON(`{"charts":["trend"]}`), IsDefault: true, CreatedAt: base}
	require.NoError(t, s.CreateDashboard(ctx, first))

	otherDefault := &models.Dashboard{UserID: other.ID, Name: "Theirs", IsDefault: true, CreatedAt: base}
	require.NoError(t, s.CreateDashboard(ctx, otherDefault))

	second := &models.Dashboard{UserID: user.ID, Name: "Geo", IsDefault: true, CreatedAt: base.Add(time.Hour)}
	require.NoError(t, s.CreateDashboard(ctx, second))

	dashboards, err := s.ListDashboards(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, dashboards, 2)
	assert.Equal(t, "Geo", dashboards[0].Name, "newest first")
	assert.True(t, dashboards[0].IsDefault)
	assert.False(t, dashboards[1].IsDefault)
	assert.JSONEq(t, `{"charts":["trend"]}`, string(dashboards[1].Config))

	theirs, err := s.ListDashboards(ctx, other.ID)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.True(t, theirs[0].IsDefault, "other users keep their default")
}

func TestUpdateDashboard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := newUser(t, s, "upd@example.org")

	a := &models.Dashboard{UserID: user.ID, Name: "A", IsDefault: true}
	b := &models.Dashboard{UserID: user.ID, Name: "B"}
	require.NoError(t, s.CreateDashboard(ctx, a))
	require.NoError(t, s.CreateDashboard(ctx, b))

	name := "B renamed"
	makeDefault := true
	updated, err := s.UpdateDashboard(ctx, user.ID, b.ID, models.DashboardPatch{Name: &name, IsDefault: &makeDefault})
	require.NoError(t, err)
	assert.Equal(t, "B renamed", updated.Name)
	assert.True(t, updated.IsDefault)

	dashboards, err := s.ListDashboards(ctx, user.ID)
	require.NoError(t, err)
	defaults := 0
	for _, d := range dashboards {
		if d.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)

	stranger := newUser(t, s, "stranger@example.org")
	_, err = s.UpdateDashboard(ctx, stranger.ID, b.ID, models.DashboardPatch{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotifications(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := newUser(t, s, "notif@example.org")
	other := newUser(t, s, "notif-other@example.org")

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	var created []*models.Notification
	for i := 0; i < 55; i++ {
		n := &models.Notification{UserID: user.ID, Title: fmt.Sprintf("n%02d", i), Message: "msg", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.CreateNotification(ctx, n))
		created = append(created, n)
	}
	foreign := &models.Notification{UserID: other.ID, Title: "foreign", Message: "msg", Type: models.NotificationWarning}
	require.NoError(t, s.CreateNotification(ctx, foreign))

	assert.Equal(t, models.NotificationInfo, created[0].Type, "type defaults to info")

	all, err := s.ListNotifications(ctx, user.ID, false)
	require.NoError(t, err)
	require.Len(t, all, MaxNotifications)
	assert.Equal(t, "n54", all[0].Title, "newest first")

	changed, err := s.MarkNotifications(ctx, user.ID, []uuid.UUID{created[54].ID, created[53].ID, foreign.ID}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed, "foreign ids are ignored")

	unread, err := s.ListNotifications(ctx, user.ID, true)
	require.NoError(t, err)
	require.Len(t, unread, 50)
	assert.Equal(t, "n52", unread[0].Title)

	theirs, err := s.ListNotifications(ctx, other.ID, true)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.False(t, theirs[0].IsRead)

	changed, err = s.MarkNotifications(ctx, user.ID, nil, true)
	require.NoError(t, err)
	assert.Zero(t, changed)
}
