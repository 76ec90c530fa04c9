package db

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DocumentRow - строка таблицы documents: один документ коллекции
type DocumentRow struct {
	Collection string    `gorm:"primaryKey;size:512"`
	ID         string    `gorm:"primaryKey;size:128"`
	Data       string    `gorm:"type:text;not null"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (DocumentRow) TableName() string {
	return "documents"
}

// Migrate создает таблицу документов и индекс по коллекции
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&DocumentRow{}); err != nil {
		return fmt.Errorf("failed to migrate documents: %w", err)
	}
	createIndexSQL := `CREATE INDEX IF NOT EXISTS idx_documents_collection_updated_at ON documents (collection, updated_at)`
	if err := db.Exec(createIndexSQL).Error; err != nil {
		return fmt.Errorf("failed to create index idx_documents_collection_updated_at: %w", err)
	}
	return nil
}
