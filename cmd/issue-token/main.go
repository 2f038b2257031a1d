// Command issue-token prints a bearer token for the batch endpoint, signed
// with auth.jwt_secret from the loaded configuration.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"docmind/internal/config"
	"docmind/internal/pkg/jwtutil"
	"docmind/internal/pkg/logging"
)

func main() {
	client := flag.String("client", "evaluator", "client name embedded in the token")
	ttl := flag.Duration("ttl", 0, "token lifetime; defaults to auth.jwt_expire_minute, negative for no expiry")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Setup("dev", "info")
		log.Fatal().Err(err).Msg("load config failed")
	}
	logging.Setup(cfg.App.Env, cfg.App.LogLevel)

	expiration := *ttl
	if expiration == 0 {
		expiration = time.Duration(cfg.Auth.JWTExpireMinute) * time.Minute
	}

	token, err := jwtutil.GenerateToken(cfg.Auth.JWTSecret, expiration, *client)
	if err != nil {
		log.Fatal().Err(err).Msg("issue token failed")
	}
	fmt.Fprintln(os.Stdout, token)
}
