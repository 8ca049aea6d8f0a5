// mkjwt prints an HS256 JWT for a given account uid, signed with JWT_SECRET.
// Dev tooling only. Run: go run ./cmd/mkjwt <uid> [email]
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: mkjwt <uid> [email]")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	claims := jwt.MapClaims{
		"sub": os.Args[1],
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	}
	if len(os.Args) > 2 {
		claims["email"] = os.Args[2]
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		log.Fatalf("sign: %v", err)
	}
	fmt.Println(token)
}
