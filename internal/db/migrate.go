package db

import (
	"context"
	defError "errors"
	"log"

	"github.com/YF-George/lobbysync/internal/lobby"

	"gorm.io/gorm"
)

// Migrate runs database migrations
func Migrate() {
	err := AppDb.AutoMigrate(
		&lobby.Room{},
		&lobby.AuditLog{},
	)

	if err != nil {
		log.Fatal(err)
	}

	log.Println("Database schema migrated successfully")
}

// SeedData seeds the database with initial data (for development only)
func SeedData() {
	repo := lobby.NewRepository(AppDb)

	_, err := repo.FindBySlug(context.Background(), "demo")
	if err == nil {
		log.Println("Demo room already exists")
		return
	}
	if !defError.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Error checking demo room: %v", err)
		return
	}

	room := &lobby.Room{
		Slug:    "demo",
		Title:   "Demo Raid Lobby",
		OwnerID: "anonymous",
	}
	if err := repo.Create(context.Background(), room); err != nil {
		log.Printf("Error creating demo room: %v", err)
	} else {
		log.Printf("Created demo room: %s", room.ID)
	}
}
