package testutil

import (
	"encoding/json"
	"time"

	"collabboard-api/internal/database"
	"collabboard-api/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewInMemoryDB creates an in-memory SQLite DB and runs migrations.
func NewInMemoryDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(database.AllModels()...); err != nil {
		return nil, err
	}
	return db, nil
}

// SeedUser creates a profile with the given email and full name.
func SeedUser(db *gorm.DB, email, fullName string) models.Profile {
	profile := models.Profile{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "x",
		FullName:     fullName,
	}
	if err := db.Create(&profile).Error; err != nil {
		panic(err)
	}
	return profile
}

// SeedProject creates a project with default workflow stages owned by owner.
func SeedProject(db *gorm.DB, name string, owner models.Profile) models.Project {
	stages, _ := json.Marshal(models.DefaultWorkflowStages())
	project := models.Project{
		ID:             uuid.NewString(),
		Name:           name,
		Status:         models.ProjectActive,
		WorkflowStages: stages,
		CreatedBy:      owner.ID,
	}
	if err := db.Create(&project).Error; err != nil {
		panic(err)
	}
	SeedMember(db, project.ID, owner.ID, models.RoleOwner)
	return project
}

// SeedMember adds a project membership row.
func SeedMember(db *gorm.DB, projectID, userID string, role models.Role) models.ProjectMember {
	member := models.ProjectMember{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  time.Now(),
	}
	if err := db.Create(&member).Error; err != nil {
		panic(err)
	}
	return member
}

// SeedTask creates a task in the given stage.
func SeedTask(db *gorm.DB, project models.Project, title, stageID string, creator models.Profile) models.Task {
	task := models.Task{
		ID:        uuid.NewString(),
		ProjectID: project.ID,
		Title:     title,
		StageID:   stageID,
		Priority:  models.PriorityMedium,
		Position:  1,
		Status:    models.StatusTodo,
		CreatedBy: creator.ID,
	}
	if err := db.Create(&task).Error; err != nil {
		panic(err)
	}
	return task
}
