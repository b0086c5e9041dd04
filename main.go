package main

import (
	"net/http"

	"github.com/joho/godotenv"

	"github.com/Gabiro3/curuza-pos2/internal/api"
	"github.com/Gabiro3/curuza-pos2/internal/config"
	"github.com/Gabiro3/curuza-pos2/internal/database"
	"github.com/Gabiro3/curuza-pos2/internal/migrations"
	"github.com/Gabiro3/curuza-pos2/internal/seed"
)

func main() {
	_ = godotenv.Load()

	logger := config.GetLogger()
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseDSN)
	defer db.Close()

	migrations.Run(db)
	seed.LoadProducts(db, cfg.SeedCSV)

	handler := api.New(db, cfg.Secret)

	logger.Infof("Curuza POS server starting on :%s", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, handler.Router()); err != nil {
		logger.Fatalf("server error: %v", err)
	}
}
