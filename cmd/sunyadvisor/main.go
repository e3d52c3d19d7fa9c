// @title SunyAdvisor API
// @version 1.0.0
// @description College advising assistant for the State University of New York system.
// @description A counselor agent talks with the student and routes factual
// @description questions to a knowledge agent backed by a campus document index.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"os"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
