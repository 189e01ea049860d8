package models

import "time"

// ReportAttachment is an evidence file uploaded to object storage for a report.
type ReportAttachment struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	ReportID    string    `gorm:"type:uuid;index;not null" json:"report_id"`
	UploaderID  string    `gorm:"type:uuid;not null" json:"uploader_id"`
	Key         string    `gorm:"not null" json:"key"`
	URL         string    `gorm:"type:text;not null" json:"url"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
