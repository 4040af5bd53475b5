package services

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/penny-labs/penny_api/model"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type PostgresService struct {
	context.DefaultService
	db *gorm.DB

	driver   string
	database string
}

const POSTGRES_SVC = "postgres_svc"

func (ds PostgresService) Id() string {
	return POSTGRES_SVC
}

func (ds PostgresService) Db() *gorm.DB {
	return ds.db
}

func (ds *PostgresService) Configure(ctx *context.Context) error {
	ds.driver = os.Getenv("DB_DRIVER")

	ds.database = os.Getenv("DATABASE_URL")
	if ds.database == "" && ds.driver == "sqlite" {
		ds.database = os.Getenv("DB_NAME")
		if ds.database == "" {
			ds.database = "penny.db"
		}
	}
	if ds.database == "" {
		// Fallback to individual environment variables
		host := os.Getenv("DB_HOST")
		if host == "" {
			host = "localhost"
		}
		port := os.Getenv("DB_PORT")
		if port == "" {
			port = "5432"
		}
		user := os.Getenv("DB_USER")
		if user == "" {
			user = "postgres"
		}
		password := os.Getenv("DB_PASSWORD")
		if password == "" {
			password = "postgres"
		}
		dbname := os.Getenv("DB_NAME")
		if dbname == "" {
			dbname = "penny_api"
		}
		sslmode := os.Getenv("DB_SSLMODE")
		if sslmode == "" {
			sslmode = "disable"
		}
		timezone := os.Getenv("DB_TIMEZONE")
		if timezone == "" {
			timezone = "UTC"
		}

		ds.database = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
			host, user, password, dbname, port, sslmode, timezone)
	}

	return ds.DefaultService.Configure(ctx)
}

func (ds *PostgresService) Start() (err error) {
	// Retry connection with exponential backoff
	maxRetries := 10
	retryDelay := time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("Attempting to connect to database (attempt %d/%d)...", attempt, maxRetries)

		ds.db, err = ds.open()

		if err == nil {
			// Test the connection
			sqlDB, dbErr := ds.db.DB()
			if dbErr == nil {
				pingErr := sqlDB.Ping()
				if pingErr == nil {
					log.Println("Successfully connected to database")
					break
				}
				err = pingErr
			} else {
				err = dbErr
			}
		}

		if attempt == maxRetries {
			log.Printf("Failed to connect to database after %d attempts: %v", maxRetries, err)
			return err
		}

		log.Printf("Database connection failed: %v. Retrying in %v...", err, retryDelay)
		time.Sleep(retryDelay)

		// Exponential backoff with max delay of 10 seconds
		retryDelay *= 2
		if retryDelay > 10*time.Second {
			retryDelay = 10 * time.Second
		}
	}

	err = ds.Migrate()
	if err != nil {
		log.Printf("Failed to migrate database: %v", err)
		return err
	}

	log.Println("Database connected and migrated successfully")
	return nil
}

func (ds *PostgresService) open() (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	}

	if ds.driver == "sqlite" {
		return gorm.Open(sqlite.Open(ds.database), cfg)
	}
	return gorm.Open(postgres.Open(ds.database), cfg)
}

func (ds *PostgresService) Migrate() error {
	return ds.db.AutoMigrate(
		&model.User{},
		&model.Quest{},
		&model.DailyQuest{},
		&model.Progress{},
		&model.Transaction{},
	)
}

func (ds *PostgresService) Shutdown() {
	sqlDB, err := ds.db.DB()
	if err == nil {
		sqlDB.Close()
	}
}

func (ds *PostgresService) HandleError(err error) error {
	if err == nil {
		return nil
	}

	var statusCode int
	var errorType string

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		statusCode = http.StatusNotFound // 404
		errorType = "NOT_FOUND"
	case errors.Is(err, gorm.ErrDuplicatedKey):
		statusCode = http.StatusConflict // 409
		errorType = "CONFLICT"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		statusCode = http.StatusBadRequest // 400
		errorType = "FOREIGN_KEY_VIOLATION"
	case errors.Is(err, gorm.ErrInvalidTransaction):
		statusCode = http.StatusInternalServerError // 500
		errorType = "TRANSACTION_ERROR"
	default:
		// Check for PostgreSQL-specific errors
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			statusCode = http.StatusConflict // 409
			errorType = "UNIQUE_CONSTRAINT"
		} else if strings.Contains(err.Error(), "relation") && strings.Contains(err.Error(), "does not exist") {
			statusCode = http.StatusInternalServerError // 500
			errorType = "SCHEMA_ERROR"
		} else if strings.Contains(err.Error(), "connection refused") {
			statusCode = http.StatusServiceUnavailable // 503
			errorType = "DATABASE_CONNECTION_ERROR"
		} else {
			statusCode = http.StatusInternalServerError // 500
			errorType = "INTERNAL_ERROR"
		}
	}

	logEntry := log.WithFields(log.Fields{
		"status_code": statusCode,
		"error_type":  errorType,
		"error":       err.Error(),
	})

	if statusCode >= 500 {
		logEntry.Error("Database error occurred")
	} else {
		logEntry.Warn("Database operation failed")
	}

	return fmt.Errorf("%s: %w", errorType, err)
}

func newID() string {
	id, _ := uuid.NewV7()
	return id.String()
}

// Users

func (ds *PostgresService) GetUser(userID string) (*model.User, error) {
	var user model.User
	if err := ds.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (ds *PostgresService) CreateUser(user *model.User) error {
	return ds.db.Create(user).Error
}

func (ds *PostgresService) UpdateUser(user *model.User) error {
	return ds.db.Save(user).Error
}

// Quests

func (ds *PostgresService) GetQuest(userID, questID string) (*model.Quest, error) {
	var quest model.Quest
	if err := ds.db.Where("id = ? AND user_id = ?", questID, userID).First(&quest).Error; err != nil {
		return nil, err
	}
	return &quest, nil
}

func (ds *PostgresService) GetActiveQuests(userID string) ([]model.Quest, error) {
	var quests []model.Quest
	err := ds.db.Where("user_id = ? AND status = ?", userID, "active").
		Order("created_at ASC").
		Find(&quests).Error
	if err != nil {
		return nil, err
	}
	return quests, nil
}

func (ds *PostgresService) CreateQuests(quests []model.Quest) error {
	if len(quests) == 0 {
		return nil
	}
	return ds.db.Create(&quests).Error
}

func (ds *PostgresService) UpdateQuest(quest *model.Quest) error {
	return ds.db.Save(quest).Error
}

func (ds *PostgresService) DeleteQuests(userID string, questIDs []string) error {
	if len(questIDs) == 0 {
		return nil
	}
	return ds.db.Where("user_id = ? AND id IN ?", userID, questIDs).Delete(&model.Quest{}).Error
}

func (ds *PostgresService) DeleteActiveQuests(userID string) (int64, error) {
	res := ds.db.Where("user_id = ? AND status = ?", userID, "active").Delete(&model.Quest{})
	return res.RowsAffected, res.Error
}

// Daily quests

func (ds *PostgresService) GetDailyQuest(userID, questID string) (*model.DailyQuest, error) {
	var quest model.DailyQuest
	if err := ds.db.Where("id = ? AND user_id = ?", questID, userID).First(&quest).Error; err != nil {
		return nil, err
	}
	return &quest, nil
}

func (ds *PostgresService) GetDailyQuestsForDay(userID, day string) ([]model.DailyQuest, error) {
	var quests []model.DailyQuest
	err := ds.db.Where("user_id = ? AND day = ?", userID, day).
		Order("created_at ASC").
		Find(&quests).Error
	if err != nil {
		return nil, err
	}
	return quests, nil
}

func (ds *PostgresService) CreateDailyQuests(quests []model.DailyQuest) error {
	if len(quests) == 0 {
		return nil
	}
	return ds.db.Create(&quests).Error
}

func (ds *PostgresService) UpdateDailyQuest(quest *model.DailyQuest) error {
	return ds.db.Save(quest).Error
}

func (ds *PostgresService) ExpireOverdueDailyQuests(now time.Time) (int64, error) {
	res := ds.db.Model(&model.DailyQuest{}).
		Where("status = ? AND expires_at <= ?", "active", now).
		Updates(map[string]interface{}{"status": "expired", "updated_at": now})
	return res.RowsAffected, res.Error
}

// Progress

func (ds *PostgresService) GetProgress(userID string) (*model.Progress, error) {
	var progress model.Progress
	if err := ds.db.Where("user_id = ?", userID).First(&progress).Error; err != nil {
		return nil, err
	}
	return &progress, nil
}

func (ds *PostgresService) CreateProgress(progress *model.Progress) error {
	return ds.db.Create(progress).Error
}

// Transactions

func (ds *PostgresService) CreateTransaction(tx *model.Transaction) error {
	return ds.db.Create(tx).Error
}

func (ds *PostgresService) GetRecentTransactions(userID string, limit int) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := ds.db.Where("user_id = ?", userID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (ds *PostgresService) GetTransactionsBetween(userID string, from, to time.Time) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := ds.db.Where("user_id = ? AND occurred_at >= ? AND occurred_at < ?", userID, from, to).
		Order("occurred_at ASC").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}
