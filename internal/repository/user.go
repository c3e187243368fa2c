package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/store"
)

const (
	UsersCollection    = "Users"
	TrackingCollection = "User_Tracking"
)

// UserRepository handles user data operations
type UserRepository struct {
	store store.Store
	now   func() time.Time
}

// NewUserRepository creates a new user repository
func NewUserRepository(s store.Store) *UserRepository {
	return &UserRepository{store: s, now: time.Now}
}

// GetOrCreate gets an existing user or creates a new one
func (r *UserRepository) GetOrCreate(ctx context.Context, ownerID string, telegramID int64, name string) (*domain.User, error) {
	var user *domain.User
	err := r.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		existing, err := r.get(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if existing != nil {
			user = existing
			return nil
		}

		user = &domain.User{ID: ownerID, TelegramID: telegramID, Name: name}
		return r.put(ctx, tx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get or create user: %w", err)
	}
	return user, nil
}

// Get returns the user, or nil when the owner has no profile
func (r *UserRepository) Get(ctx context.Context, ownerID string) (*domain.User, error) {
	return r.get(ctx, r.store, ownerID)
}

// Save replaces the stored profile
func (r *UserRepository) Save(ctx context.Context, user *domain.User) error {
	return r.put(ctx, r.store, user)
}

// UpdateFitbitCredentials stores refreshed tracker tokens
func (r *UserRepository) UpdateFitbitCredentials(ctx context.Context, ownerID, accessToken, refreshToken string, expiresAt time.Time) error {
	return r.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		user, err := r.get(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("user %s not found", ownerID)
		}
		user.FitbitAccessToken = accessToken
		user.FitbitRefreshToken = refreshToken
		user.FitbitExpiresAt = expiresAt.UTC()
		return r.put(ctx, tx, user)
	})
}

// ListFitbitUsers returns every user that granted tracker access
func (r *UserRepository) ListFitbitUsers(ctx context.Context) ([]domain.User, error) {
	docs, err := r.store.Find(ctx, UsersCollection, store.Query{Order: store.Ascending})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		var u domain.User
		if err := json.Unmarshal(doc.Data, &u); err != nil {
			return nil, fmt.Errorf("failed to decode user %s: %w", doc.ID, err)
		}
		if u.FitbitPermission && u.FitbitAccessToken != "" {
			u.CreatedAt, u.UpdatedAt = doc.CreatedAt, doc.UpdatedAt
			users = append(users, u)
		}
	}
	return users, nil
}

func (r *UserRepository) get(ctx context.Context, s store.Store, ownerID string) (*domain.User, error) {
	doc, err := s.Get(ctx, UsersCollection, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", ownerID, err)
	}
	var u domain.User
	if err := json.Unmarshal(doc.Data, &u); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", ownerID, err)
	}
	u.CreatedAt, u.UpdatedAt = doc.CreatedAt, doc.UpdatedAt
	return &u, nil
}

func (r *UserRepository) put(ctx context.Context, s store.Store, user *domain.User) error {
	if user.ID == "" {
		return fmt.Errorf("user id is required")
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	created := user.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	return s.Put(ctx, UsersCollection, store.Document{
		ID:        user.ID,
		OwnerID:   user.ID,
		Timestamp: created.UTC(),
		Data:      data,
	})
}

// TrackingRepository keeps per-owner sync watermarks
type TrackingRepository struct {
	store store.Store
	now   func() time.Time
}

// NewTrackingRepository creates a new tracking repository
func NewTrackingRepository(s store.Store) *TrackingRepository {
	return &TrackingRepository{store: s, now: time.Now}
}

// Get returns the owner's watermarks. A missing document yields an empty value.
func (r *TrackingRepository) Get(ctx context.Context, ownerID string) (domain.Tracking, error) {
	return r.get(ctx, r.store, ownerID)
}

// Mark sets one watermark, leaving the others untouched
func (r *TrackingRepository) Mark(ctx context.Context, ownerID string, field domain.TrackingField, at time.Time) error {
	return r.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		t, err := r.get(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if err := t.Set(field, at); err != nil {
			return err
		}
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to encode tracking: %w", err)
		}
		return tx.Put(ctx, TrackingCollection, store.Document{
			ID:        ownerID,
			OwnerID:   ownerID,
			Timestamp: r.now().UTC().Truncate(time.Second),
			Data:      data,
		})
	})
}

func (r *TrackingRepository) get(ctx context.Context, s store.Store, ownerID string) (domain.Tracking, error) {
	var t domain.Tracking
	doc, err := s.Get(ctx, TrackingCollection, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("failed to get tracking for %s: %w", ownerID, err)
	}
	if err := json.Unmarshal(doc.Data, &t); err != nil {
		return t, fmt.Errorf("failed to decode tracking for %s: %w", ownerID, err)
	}
	return t, nil
}
