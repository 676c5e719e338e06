// Command useradm creates back-office staff accounts. There is no public
// registration endpoint; accounts are provisioned from the server host.
package main

import (
	"flag"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"brickdesk/server/config"
	"brickdesk/server/internal/auth"
	"brickdesk/server/internal/database"
	"brickdesk/server/internal/models"
)

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	username := flag.String("username", "", "login name")
	password := flag.String("password", "", "initial password")
	displayName := flag.String("display-name", "", "name shown in the dashboard")
	role := flag.String("role", "staff", "account role")
	flag.Parse()

	if *username == "" || *password == "" {
		logger.Fatal("username and password are required")
	}

	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		logger.WithError(err).Fatal("Failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     *username,
		DisplayName:  *displayName,
		Role:         *role,
		PasswordHash: hash,
	}
	if err := db.CreateUser(user); err != nil {
		logger.WithError(err).Fatal("Failed to create user")
	}

	logger.WithFields(logrus.Fields{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
	}).Info("Created user")
}
