package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"fileportal/internal/model"
)

// UserRepository defines user persistence operations.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Count(ctx context.Context) (int64, error)
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	ListByStatus(ctx context.Context, status model.Status) ([]model.User, error)
	UpdateStatus(ctx context.Context, id uint, status model.Status) error
	Delete(ctx context.Context, id uint) error
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo UserRepository) error) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ListByStatus(ctx context.Context, status model.Status) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("status = ?", status).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateStatus sets the status column. Callers check existence first: MySQL
// reports zero affected rows when the value does not change.
func (r *userRepository) UpdateStatus(ctx context.Context, id uint, status model.Status) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// Delete removes the user row. It returns gorm.ErrRecordNotFound when no row matched.
func (r *userRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// WithTransaction executes a function within a serializable database
// transaction. A transaction the database aborted to keep it serializable
// returns an error wrapping ErrSerialization; the caller may retry it.
func (r *userRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo UserRepository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &userRepository{db: tx}
		return fn(ctx, txRepo)
	}, serializable(r.db)...)
	if isSerializationFailure(err) {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return err
}
