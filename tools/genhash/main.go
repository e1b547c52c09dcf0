package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/yourusername/maintenance-gate/internal/auth"
)

// Prints either the bcrypt hash of a token for auth.token_hash, or, with
// -jwt, a signed token for auth mode jwt.
func main() {
	token := flag.String("token", "", "Token to hash (or set MAINTENANCE_TOKEN)")
	cost := flag.Int("cost", 12, "bcrypt cost")
	issueJWT := flag.Bool("jwt", false, "Issue a signed JWT instead of hashing")
	operation := flag.String("operation", "system_reset", "Operation the JWT authorizes")
	ttl := flag.Duration("ttl", 15*time.Minute, "JWT lifetime")
	flag.Parse()

	if *issueJWT {
		secret := os.Getenv("MAINTENANCE_JWT_SECRET")
		if secret == "" {
			log.Fatal("MAINTENANCE_JWT_SECRET must be set to issue a JWT")
		}
		signed, err := auth.NewJWTVerifier(secret, *operation).Issue(*ttl)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(signed)
		return
	}

	if *token == "" {
		*token = os.Getenv("MAINTENANCE_TOKEN")
	}
	if *token == "" {
		log.Fatal("Token is required (use -token or set MAINTENANCE_TOKEN)")
	}
	hash, err := auth.HashToken(*token, *cost)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(hash)
}
