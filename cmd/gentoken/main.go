// gentoken mints an access token for a user id. Session issuing lives
// outside this service, so operators and tests need a way to produce a
// valid principal token for a known secret.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/vtumart/internal/service/principal"
)

func main() {
	var (
		secret string
		user   string
		ttl    time.Duration
	)

	fs := pflag.NewFlagSet("gentoken", pflag.ContinueOnError)
	fs.StringVarP(&secret, "secret-key", "s", "", "Secret key the service is running with")
	fs.StringVarP(&user, "user", "u", "", "User id to mint the token for (random if empty)")
	fs.DurationVarP(&ttl, "ttl", "t", 24*time.Hour, "Token lifetime")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Printf("error while parsing flags: %v\n", err)
		os.Exit(1)
	}

	userID := uuid.New()
	if user != "" {
		parsed, err := uuid.Parse(user)
		if err != nil {
			fmt.Printf("error while parsing user id: %v\n", err)
			os.Exit(1)
		}
		userID = parsed
	}

	verifier, err := principal.NewVerifier(secret)
	if err != nil {
		fmt.Printf("error while creating verifier: %v\n", err)
		os.Exit(1)
	}

	token, err := verifier.Issue(userID, ttl)
	if err != nil {
		fmt.Printf("error while issuing token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("user id:", userID)
	fmt.Println("token:  ", token)
}
