package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	LogLevel    string

	// OCR
	TesseractDataPath string
	OCRLanguage       string
	OCREngines        []string
	OCRMinChars       int
	PaddleAPIURL      string
	AzureEndpoint     string
	AzureKey          string
	GeminiAPIKey      string
	GeminiModels      []string

	// Screenshot storage
	StorageBackend string
	StorageDir     string
	GCSBucket      string
	MaxUploadBytes int64

	// Background processing
	WorkerCount   int
	QueueSize     int
	JobMaxRetries int

	// Matching
	LegacyAmountProximityMatch bool
}

// LoadConfig reads .env (if present) and then the environment.
func LoadConfig() *Config {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		TesseractDataPath: getEnv("TESSDATA_PREFIX", "/usr/share/tesseract-ocr/5/tessdata/"),
		OCRLanguage:       getEnv("OCR_LANGUAGE", "eng"),
		OCREngines:        getList("OCR_ENGINES", []string{"tesseract"}),
		OCRMinChars:       getInt("OCR_MIN_CHARS", 10),
		PaddleAPIURL:      getEnv("PADDLEOCR_API_URL", "http://paddleocr:8866/predict/ocr_system"),
		AzureEndpoint:     os.Getenv("AZURE_VISION_ENDPOINT"),
		AzureKey:          os.Getenv("AZURE_VISION_KEY"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModels:      getList("GEMINI_MODELS", []string{"gemini-2.5-flash", "gemini-2.0-flash"}),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
		StorageDir:     getEnv("STORAGE_DIR", "./uploads"),
		GCSBucket:      os.Getenv("GCS_BUCKET"),
		MaxUploadBytes: int64(getInt("MAX_UPLOAD_BYTES", 10*1024*1024)), // 10 MB

		WorkerCount:   getInt("WORKER_COUNT", 4),
		QueueSize:     getInt("QUEUE_SIZE", 100),
		JobMaxRetries: getInt("JOB_MAX_RETRIES", 2),

		LegacyAmountProximityMatch: getBool("MATCH_LEGACY_AMOUNT_PROXIMITY", true),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
