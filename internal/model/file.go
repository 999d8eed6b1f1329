package model

import "time"

// File is the metadata of an uploaded file. The bytes live in the storage
// provider under StoredName; OriginalName is only used as the download name.
type File struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	StoredName   string    `json:"-" gorm:"uniqueIndex;size:255;not null"`
	OriginalName string    `json:"original_name" gorm:"size:255;not null"`
	Path         string    `json:"-" gorm:"size:500;not null"`
	ContentType  string    `json:"content_type" gorm:"size:127"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploaded_at" gorm:"autoCreateTime"`
	UploadedBy   uint      `json:"uploaded_by" gorm:"not null;index"`

	// Relations
	Uploader *User `json:"-" gorm:"foreignKey:UploadedBy;constraint:OnDelete:RESTRICT"`
}
