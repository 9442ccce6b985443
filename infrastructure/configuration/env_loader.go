package configuration

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"

	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/logger"
)

// LoadEnvFromFile loads KEY=VALUE files (config.env, .env) into the process
// environment. Variables already set in the environment win. Missing files are skipped.
func LoadEnvFromFile(paths ...string) {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.GetLogger().WithField("file", p).WithError(err).Warn("Failed to load env file")
		}
	}
}
