package main

import (
	"encoding/json"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/penny-labs/penny_api/model"
	"github.com/penny-labs/penny_api/shared"
)

// Seeds a local sqlite database with a demo user and a week of spending
// so the app is playable without the external ledger.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	var (
		dbPath = flag.String("db", "penny.db", "Database path")
		userID = flag.String("user", "demo-user", "Demo user id")
	)
	flag.Parse()

	db, err := gorm.Open(sqlite.Open(*dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&model.User{},
		&model.Quest{},
		&model.DailyQuest{},
		&model.Progress{},
		&model.Transaction{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	now := time.Now()
	emptyList, _ := json.Marshal([]string{})

	user := model.User{
		ID:              *userID,
		Email:           "demo@penny.app",
		Username:        "penny_demo",
		DailyGoal:       shared.DefaultDailyGoal,
		Hearts:          5,
		CompletedQuests: emptyList,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := db.Where("id = ?", user.ID).FirstOrCreate(&user).Error; err != nil {
		log.Fatalf("Failed to seed user: %v", err)
	}

	progress := model.Progress{
		ID:        newID(),
		UserID:    user.ID,
		Level:     1,
		Badges:    emptyList,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Where("user_id = ?", user.ID).FirstOrCreate(&progress).Error; err != nil {
		log.Fatalf("Failed to seed progress: %v", err)
	}

	samples := []struct {
		amount      float64
		description string
		category    string
		merchant    string
		daysAgo     int
	}{
		{4.75, "Iced latte", "food", "Corner Coffee", 0},
		{23.10, "Groceries", "groceries", "FreshMart", 1},
		{12.99, "Streaming subscription", "entertainment", "StreamFlix", 2},
		{8.50, "Lunch burrito", "food", "Taco Town", 3},
		{54.00, "New sneakers", "shopping", "Shoe Palace", 4},
		{15.25, "Ride share", "transport", "GoRide", 5},
		{6.00, "Movie snacks", "entertainment", "CinePlex", 6},
	}

	for _, s := range samples {
		tx := model.Transaction{
			ID:          newID(),
			UserID:      user.ID,
			Amount:      s.amount,
			Description: s.description,
			Category:    s.category,
			Merchant:    s.merchant,
			OccurredAt:  now.AddDate(0, 0, -s.daysAgo),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := db.Create(&tx).Error; err != nil {
			log.Fatalf("Failed to seed transaction: %v", err)
		}
	}

	log.Printf("Seeded user %q with %d transactions into %s", user.ID, len(samples), *dbPath)
}

func newID() string {
	id, _ := uuid.NewV7()
	return id.String()
}
