package repository

import (
	"context"
	"testing"

	"wisefido-carehub/internal/models"
	"wisefido-carehub/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestKV(t *testing.T) (*miniredis.Miniredis, store.KV) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, store.NewRedisKV(client)
}

// ============================================
// 用户目录
// ============================================

func TestUserRepository_CreateAndFind(t *testing.T) {
	_, kv := setupTestKV(t)
	repo := NewUserRepository(kv, zap.NewNop())
	ctx := context.Background()

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	require.NoError(t, repo.CreateUser(ctx, models.User{Name: "bob", Pass: "secret", IsNew: true}))

	user, err := repo.FindByCredentials(ctx, "bob", "secret")
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Name)
	assert.True(t, user.IsNew)

	_, err = repo.FindByCredentials(ctx, "bob", "wrong")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	_, kv := setupTestKV(t)
	repo := NewUserRepository(kv, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.CreateUser(ctx, models.User{Name: "bob", Pass: "a"}))
	err := repo.CreateUser(ctx, models.User{Name: "bob", Pass: "b"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestUserRepository_UpdateUserWritesDirectoryAndCurrentUser(t *testing.T) {
	mr, kv := setupTestKV(t)
	repo := NewUserRepository(kv, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.CreateUser(ctx, models.User{Name: "alice", Pass: "1"}))
	require.NoError(t, repo.CreateUser(ctx, models.User{Name: "bob", Pass: "2"}))

	updated := models.User{Name: "bob", Pass: "2", PatientName: "Grandma", TelegramID: "12345"}
	require.NoError(t, repo.UpdateUser(ctx, updated))

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "", users[0].PatientName)
	assert.Equal(t, "Grandma", users[1].PatientName)

	current, err := repo.GetCurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "12345", current.TelegramID)

	// 字段名与旧前端一致
	raw, err := mr.Get("hub_current_user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"bob","pass":"2","telegramId":"12345","patientName":"Grandma","isNew":false}`, raw)
}

func TestUserRepository_UpdateUnknownUser(t *testing.T) {
	_, kv := setupTestKV(t)
	repo := NewUserRepository(kv, zap.NewNop())

	err := repo.UpdateUser(context.Background(), models.User{Name: "ghost"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_CurrentUserLifecycle(t *testing.T) {
	mr, kv := setupTestKV(t)
	repo := NewUserRepository(kv, zap.NewNop())
	ctx := context.Background()

	current, err := repo.GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	require.NoError(t, repo.SetCurrentUser(ctx, models.User{Name: "bob"}))
	current, err = repo.GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", current.Name)

	require.NoError(t, repo.ClearCurrentUser(ctx))
	assert.False(t, mr.Exists("hub_current_user"))
}

func TestUserRepository_CorruptDirectory(t *testing.T) {
	mr, kv := setupTestKV(t)
	repo := NewUserRepository(kv, zap.NewNop())
	require.NoError(t, mr.Set("hub_users", "not-json"))

	_, err := repo.ListUsers(context.Background())
	assert.Error(t, err)
}

// ============================================
// 用药提醒
// ============================================

func TestReminderRepository_AddKeepsSortedOrder(t *testing.T) {
	mr, kv := setupTestKV(t)
	repo := NewReminderRepository(kv, zap.NewNop())
	ctx := context.Background()

	_, err := repo.Add(ctx, "bob", models.Reminder{Time: "21:00", Desc: "Vitamin D"})
	require.NoError(t, err)
	list, err := repo.Add(ctx, "bob", models.Reminder{Time: "08:00", Desc: "Aspirin"})
	require.NoError(t, err)

	assert.Equal(t, []models.Reminder{
		{Time: "08:00", Desc: "Aspirin"},
		{Time: "21:00", Desc: "Vitamin D"},
	}, list)

	raw, err := mr.Get("meds_bob")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"time":"08:00","desc":"Aspirin"},{"time":"21:00","desc":"Vitamin D"}]`, raw)
}

func TestReminderRepository_AddValidation(t *testing.T) {
	_, kv := setupTestKV(t)
	repo := NewReminderRepository(kv, zap.NewNop())
	ctx := context.Background()

	_, err := repo.Add(ctx, "bob", models.Reminder{Time: "08:00"})
	assert.ErrorIs(t, err, ErrInvalidReminder)

	_, err = repo.Add(ctx, "bob", models.Reminder{Time: "8am", Desc: "Aspirin"})
	assert.ErrorIs(t, err, ErrInvalidReminder)
}

func TestReminderRepository_Delete(t *testing.T) {
	_, kv := setupTestKV(t)
	repo := NewReminderRepository(kv, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Replace(ctx, "bob", []models.Reminder{
		{Time: "08:00", Desc: "Aspirin"},
		{Time: "12:00", Desc: "Metformin"},
		{Time: "21:00", Desc: "Vitamin D"},
	}))

	list, err := repo.Delete(ctx, "bob", 1)
	require.NoError(t, err)
	assert.Equal(t, []models.Reminder{
		{Time: "08:00", Desc: "Aspirin"},
		{Time: "21:00", Desc: "Vitamin D"},
	}, list)

	_, err = repo.Delete(ctx, "bob", 5)
	assert.ErrorIs(t, err, ErrReminderIndex)
	_, err = repo.Delete(ctx, "bob", -1)
	assert.ErrorIs(t, err, ErrReminderIndex)
}

func TestReminderRepository_ListIsPerUser(t *testing.T) {
	_, kv := setupTestKV(t)
	repo := NewReminderRepository(kv, zap.NewNop())
	ctx := context.Background()

	_, err := repo.Add(ctx, "bob", models.Reminder{Time: "08:00", Desc: "Aspirin"})
	require.NoError(t, err)

	list, err := repo.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, list)
}

// ============================================
// 事件日志
// ============================================

func TestEventRepository_SaveLoadDelete(t *testing.T) {
	mr, kv := setupTestKV(t)
	repo := NewEventRepository(kv)
	ctx := context.Background()

	records := []models.EventRecord{
		{ID: 2, Time: "08:01", Msg: "IMPACT DETECTED: Grandma"},
		{ID: 1, Time: "08:00", Msg: "MEDICATION TIME: Aspirin"},
	}
	require.NoError(t, repo.Save(ctx, "bob", records))

	raw, err := mr.Get("events_bob")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":2,"time":"08:01","msg":"IMPACT DETECTED: Grandma"},{"id":1,"time":"08:00","msg":"MEDICATION TIME: Aspirin"}]`, raw)

	loaded, err := repo.Load(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, records, loaded)

	require.NoError(t, repo.Delete(ctx, "bob"))
	assert.False(t, mr.Exists("events_bob"))

	loaded, err = repo.Load(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
