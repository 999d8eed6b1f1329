package repository

import (
	"context"

	"gorm.io/gorm"

	"fileportal/internal/model"
)

// FileRepository defines file metadata persistence operations. Records are
// append-only: there is no update or delete.
type FileRepository interface {
	Create(ctx context.Context, file *model.File) error
	FindByID(ctx context.Context, id uint) (*model.File, error)
	List(ctx context.Context) ([]model.File, error)
}

type fileRepository struct {
	db *gorm.DB
}

// NewFileRepository builds a GORM-backed file repository.
func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Create(ctx context.Context, file *model.File) error {
	return r.db.WithContext(ctx).Create(file).Error
}

func (r *fileRepository) FindByID(ctx context.Context, id uint) (*model.File, error) {
	var file model.File
	if err := r.db.WithContext(ctx).First(&file, id).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

// List returns every file in upload order.
func (r *fileRepository) List(ctx context.Context) ([]model.File, error) {
	var files []model.File
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}
