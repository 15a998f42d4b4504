package main

import (
	"log"
	"os"

	"github.com/gopherchat/agent/internal/config"
	"github.com/gopherchat/agent/internal/db"
	"github.com/gopherchat/agent/internal/httpapi"
	"github.com/gopherchat/agent/internal/store/rabbitmq"
	"github.com/gopherchat/agent/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	// async chat degrades to 503 when the broker is down, the rest of
	// the API still serves
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Printf("rabbit unavailable, async chat disabled: %v", err)
		pub = nil
	} else {
		defer pub.Close()
	}

	r := httpapi.NewRouter(gdb, cfg, rds, pub)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("server listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server: %v", err)
	}
}
