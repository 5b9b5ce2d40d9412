package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"wisefido-carehub/internal/models"
	"wisefido-carehub/internal/store"

	"go.uber.org/zap"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// UserRepository 用户目录（hub_users）与当前用户指针（hub_current_user）
type UserRepository struct {
	kv     store.KV
	logger *zap.Logger
}

// NewUserRepository 创建用户仓库
func NewUserRepository(kv store.KV, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		kv:     kv,
		logger: logger,
	}
}

// ListUsers 读取全部用户
func (r *UserRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := getJSON(ctx, r.kv, usersKey, &users); err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	return users, nil
}

// FindByCredentials 按用户名+密码查找（明文比较）
func (r *UserRepository) FindByCredentials(ctx context.Context, name, pass string) (*models.User, error) {
	users, err := r.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Name == name && u.Pass == pass {
			user := u
			return &user, nil
		}
	}
	return nil, ErrUserNotFound
}

// CreateUser 注册新用户
func (r *UserRepository) CreateUser(ctx context.Context, user models.User) error {
	users, err := r.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.Name == user.Name {
			return ErrUserExists
		}
	}
	users = append(users, user)
	if err := setJSON(ctx, r.kv, usersKey, users); err != nil {
		return fmt.Errorf("failed to save users: %w", err)
	}

	r.logger.Info("User registered", zap.String("user_name", user.Name))
	return nil
}

// UpdateUser 按用户名覆盖用户档案，同时更新当前用户指针
func (r *UserRepository) UpdateUser(ctx context.Context, user models.User) error {
	users, err := r.ListUsers(ctx)
	if err != nil {
		return err
	}

	found := false
	for i := range users {
		if users[i].Name == user.Name {
			users[i] = user
			found = true
		}
	}
	if !found {
		return ErrUserNotFound
	}

	if err := setJSON(ctx, r.kv, usersKey, users); err != nil {
		return fmt.Errorf("failed to save users: %w", err)
	}
	return r.SetCurrentUser(ctx, user)
}

// GetCurrentUser 读取当前登录用户，未登录返回 nil
func (r *UserRepository) GetCurrentUser(ctx context.Context) (*models.User, error) {
	raw, err := r.kv.Get(ctx, currentUserKey)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load current user: %w", err)
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current user: %w", err)
	}
	return &user, nil
}

// SetCurrentUser 写入当前用户指针
func (r *UserRepository) SetCurrentUser(ctx context.Context, user models.User) error {
	if err := setJSON(ctx, r.kv, currentUserKey, user); err != nil {
		return fmt.Errorf("failed to save current user: %w", err)
	}
	return nil
}

// ClearCurrentUser 登出
func (r *UserRepository) ClearCurrentUser(ctx context.Context) error {
	if err := r.kv.Del(ctx, currentUserKey); err != nil {
		return fmt.Errorf("failed to clear current user: %w", err)
	}
	return nil
}

// getJSON 读取 JSON 值，键不存在时保持 dest 不变
func getJSON(ctx context.Context, kv store.KV, key string, dest interface{}) error {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

func setJSON(ctx context.Context, kv store.KV, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return kv.Set(ctx, key, string(data))
}
