package storage

import (
	"log"
	"os"

	"github.com/khangkhangg/AI-travel-sub002/models"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func connectToDB() *gorm.DB {
	// Only load .env in development (when RENDER env var is not set)
	if os.Getenv("RENDER") == "" {
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Could not load .env file (this is normal in production)")
		}
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Panic("DB_CONNECTION_STRING environment variable is required")
	}

	db, dbError := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if dbError != nil {
		log.Panic("error connection to db: " + dbError.Error())
	}

	DB = db
	return db
}

// Migrate runs schema migrations. Exported so tests can run the same
// migrations against their own database handle.
func Migrate(db *gorm.DB) {
	db.AutoMigrate(
		&models.User{},
		&models.Business{},
		&models.Trip{},
		&models.TripActivity{},
		&models.ServiceNeed{},
		&models.Proposal{},
		&models.TripMessage{},
		&models.Notification{},
	)

	// One live proposal per (trip, business). AutoMigrate cannot express the
	// WHERE clause, and the submit-path read check alone would race under
	// concurrent requests.
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_proposals_one_active ON proposals (trip_id, business_id) WHERE status NOT IN ('declined','expired','withdrawn');")
}

func InitializeDB() *gorm.DB {
	db := connectToDB()
	Migrate(db)
	return db
}
