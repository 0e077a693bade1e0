// Command token mints an access token signed with the relay's JWT secret, for local testing
// of the websocket endpoint.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/code-100-precent/LingRelay/pkg/auth"
	"github.com/code-100-precent/LingRelay/pkg/config"
)

func main() {
	userID := flag.String("user", "", "user id placed in the subject claim (required)")
	admin := flag.Bool("admin", false, "grant administrator rights")
	roles := flag.String("roles", "", "comma separated roles")
	ttl := flag.Duration("ttl", 0, "token lifetime, defaults to JWT_ACCESS_TTL")
	flag.Parse()

	if *userID == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := config.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "config load failed:", err)
		os.Exit(1)
	}
	if os.Getenv("JWT_SECRET") == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set; the token will not verify against a running server")
	}

	jwtConfig := auth.DefaultJWTConfig(config.GlobalConfig.JWTSecret)
	jwtConfig.Issuer = config.GlobalConfig.JWTIssuer
	jwtConfig.AccessTokenTTL = config.GlobalConfig.JWTAccessTTL
	if *ttl > 0 {
		jwtConfig.AccessTokenTTL = *ttl
	}

	var roleList []string
	for _, r := range strings.Split(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roleList = append(roleList, r)
		}
	}

	token, err := auth.NewJWTManager(jwtConfig).GenerateAccessToken(*userID, *admin, roleList...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
