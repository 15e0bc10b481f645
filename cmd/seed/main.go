// Command main runs the database seeder for Tableside.
package main

import (
	"flag"
	"log"

	"tableside/internal/bootstrap"
	"tableside/internal/config"
	"tableside/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 25, "Number of users to create")
	numRestaurants := flag.Int("restaurants", 12, "Number of restaurants to create")
	numReviews := flag.Int("reviews", 40, "Number of reviews to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	skipBcrypt := flag.Bool("fast", false, "Skip bcrypt hashing for faster seeding")
	flag.Parse()

	log.Println("Database Seeder")
	log.Printf("Target: %d users, %d restaurants, %d reviews, clean=%v",
		*numUsers, *numRestaurants, *numReviews, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, _, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{
		NumUsers:       *numUsers,
		NumRestaurants: *numRestaurants,
		NumReviews:     *numReviews,
		ShouldClean:    *shouldClean,
		SkipBcrypt:     *skipBcrypt,
	})
	if err := s.Run(); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
