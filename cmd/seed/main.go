// Command seed populates the guard and resident directories and opens sample
// conversations. With -tokens it prints development bearer tokens.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"gatehouse/internal/config"
	"gatehouse/internal/database"
	"gatehouse/internal/middleware"
	"gatehouse/internal/seed"
)

func main() {
	numGuards := flag.Int("guards", 3, "Number of guards to create")
	numResidents := flag.Int("residents", 20, "Number of residents to create")
	numConversations := flag.Int("conversations", 10, "Number of sample conversations")
	fixtures := flag.String("fixtures", "", "YAML fixtures file; replaces generated directory data")
	shouldClean := flag.Bool("clean", true, "Clean tables before seeding")
	printTokens := flag.Bool("tokens", false, "Print a 24h bearer token per participant")
	randSeed := flag.Int64("seed", 0, "Fake data seed (0 = random)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	s := seed.NewSeeder(db, seed.NewFactory(*randSeed))

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	var dir *seed.Directory
	if *fixtures != "" {
		f, err := seed.LoadFixtures(*fixtures)
		if err != nil {
			log.Fatalf("Fixtures: %v", err)
		}
		dir, err = s.ApplyFixtures(ctx, f)
		if err != nil {
			log.Fatalf("Fixture seeding failed: %v", err)
		}
	} else {
		dir, err = s.SeedDirectory(ctx, *numGuards, *numResidents)
		if err != nil {
			log.Fatalf("Directory seeding failed: %v", err)
		}
	}

	if _, err := s.SeedConversations(ctx, dir, *numConversations); err != nil {
		log.Fatalf("Conversation seeding failed: %v", err)
	}

	if *printTokens {
		verifier := middleware.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, nil)
		for _, g := range dir.Guards {
			tok, err := verifier.Issue(g.ID, 24*time.Hour)
			if err != nil {
				log.Fatalf("Issue token: %v", err)
			}
			fmt.Printf("guard\t%s\t%s\t%s\n", g.ID, g.Email, tok)
		}
		for _, r := range dir.Residents {
			tok, err := verifier.Issue(r.ID, 24*time.Hour)
			if err != nil {
				log.Fatalf("Issue token: %v", err)
			}
			fmt.Printf("resident\t%s\t%s\t%s\n", r.ID, r.Email, tok)
		}
	}

	log.Printf("Seeded %d guards and %d residents", len(dir.Guards), len(dir.Residents))
}
