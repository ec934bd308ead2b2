package database

import (
	"log"
	"os"

	"collabboard-api/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// AllModels lists every table the kernel migrates. Realtime publication
// covers projects, tasks, project_members, notifications, comments,
// organizations and organization_members.
func AllModels() []any {
	return []any{
		&models.Profile{},
		&models.PasswordResetPin{},
		&models.Organization{},
		&models.OrganizationMember{},
		&models.Project{},
		&models.ProjectMember{},
		&models.ProjectInvitation{},
		&models.Task{},
		&models.Comment{},
		&models.Mention{},
		&models.AttentionItem{},
		&models.Notification{},
		&models.SlackIntegration{},
	}
}

// InitDB initializes the database connection and runs migrations
func InitDB() {
	var err error

	path := os.Getenv("DB_PATH")
	if path == "" {
		path = "collabboard.db"
	}

	// Using glebarez/sqlite which is a pure Go implementation (no CGO required)
	DB, err = gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})

	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	if err := DB.AutoMigrate(AllModels()...); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	log.Println("Database connected and migrated")
}

// GetDB returns the database connection
func GetDB() *gorm.DB {
	return DB
}
