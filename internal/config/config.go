package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries the runtime settings for the server and its tools.
type Config struct {
	Addr              string
	DataDir           string
	JWTSecret         string
	AdminPassword     string
	AdminPasswordHash string
	FaceWarmup        time.Duration
	QRImageSize       int
}

// Load reads an optional .env file and then the environment, falling back
// to defaults. The default password matches the original deployment and
// should be overridden anywhere that matters.
func Load() (*Config, error) {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	warmupMS, err := getEnvInt("ROTCTRACK_FACE_WARMUP_MS", 500)
	if err != nil {
		return nil, err
	}
	qrSize, err := getEnvInt("ROTCTRACK_QR_SIZE", 200)
	if err != nil {
		return nil, err
	}

	return &Config{
		Addr:              getEnv("ROTCTRACK_ADDR", ":8080"),
		DataDir:           getEnv("ROTCTRACK_DATA_DIR", defaultDataDir()),
		JWTSecret:         getEnv("ROTCTRACK_JWT_SECRET", "rotctrack-dev-secret"),
		AdminPassword:     getEnv("ROTCTRACK_ADMIN_PASSWORD", "rotc123"),
		AdminPasswordHash: getEnv("ROTCTRACK_ADMIN_PASSWORD_HASH", ""),
		FaceWarmup:        time.Duration(warmupMS) * time.Millisecond,
		QRImageSize:       qrSize,
	}, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rotctrack"
	}
	return home + string(os.PathSeparator) + ".rotctrack"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(value)
}
