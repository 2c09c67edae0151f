package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	OCR      OCRConfig
	Analyzer AnalyzerConfig
	Ledger   LedgerConfig
	Gate     GateConfig
}

// DatabaseConfig holds database-related configuration. DSN selects the
// backend: postgres:// uses pgx, anything else is treated as a SQLite path.
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract     string
	TesseractLang string
	Preprocessor  string
	TessdataDir   string
	Pdftotext     string
	Pdftoppm      string
	PDFDPI        int
	PDFMaxPages   int
	MinConfidence float32
	PSM           int
	OEM           int
}

// AnalyzerConfig holds multimodal-inference configuration
type AnalyzerConfig struct {
	Model       string
	APIKey      string
	Timeout     time.Duration
	MaxInFlight int
}

// LedgerConfig holds the ledger API configuration
type LedgerConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// GateConfig holds the submission decision thresholds
type GateConfig struct {
	AutoSubmitThreshold float32
	ConfidenceFloor     float32
	Unattended          bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", "receipt2ledger.db"),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		OCR: OCRConfig{
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			Preprocessor:  getEnv("OCR_PREPROCESSOR", "magick"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			Pdftotext:     getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			PDFDPI:        getEnvAsInt("PDF_DPI", 300),
			PDFMaxPages:   getEnvAsInt("PDF_MAX_PAGES", 10),
			MinConfidence: getEnvAsFloat32("OCR_MIN_CONFIDENCE", 0.4),
			PSM:           getEnvAsInt("TESSERACT_PSM", 6),
			OEM:           getEnvAsInt("TESSERACT_OEM", 0),
		},
		Analyzer: AnalyzerConfig{
			Model:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			APIKey:      getEnv("GEMINI_API_KEY", ""),
			Timeout:     getEnvAsDuration("GEMINI_TIMEOUT", 60*time.Second),
			MaxInFlight: getEnvAsInt("ANALYZER_MAX_IN_FLIGHT", 2),
		},
		Ledger: LedgerConfig{
			BaseURL: getEnv("LEDGER_BASE_URL", ""),
			Token:   getEnv("LEDGER_TOKEN", ""),
			Timeout: getEnvAsDuration("LEDGER_TIMEOUT", 30*time.Second),
		},
		Gate: GateConfig{
			AutoSubmitThreshold: getEnvAsFloat32("GATE_AUTO_SUBMIT_THRESHOLD", 0.85),
			ConfidenceFloor:     getEnvAsFloat32("GATE_CONFIDENCE_FLOOR", 0.15),
			Unattended:          getEnvAsBool("GATE_UNATTENDED", false),
		},
	}
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrValidation)
	}
	if c.Gate.AutoSubmitThreshold < c.Gate.ConfidenceFloor {
		return NewAppError("CONFIG_ERROR", "GATE_AUTO_SUBMIT_THRESHOLD below GATE_CONFIDENCE_FLOOR", ErrValidation)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
