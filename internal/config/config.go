package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/raceday/race-order/internal/core/domain"
)

// Config is read once from the environment at startup and passed down
// explicitly; there is no global accessor.
type Config struct {
	HTTPAddr  string
	MySQLDSN  string
	RedisAddr string

	GatewayBaseURL      string
	GatewayServerKey    string
	GatewayBasicAuthKey string

	OrderNumberPrefix string
	BibMin            int
	BibMax            int

	ReservationPolicy domain.ReservationPolicy
	IdentityField     string
	FormSchemaPath    string

	CORSAllowedOrigins []string
}

func Load() Config {
	return Config{
		HTTPAddr:  getenv("HTTP_ADDR", ":8080"),
		MySQLDSN:  getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/raceorder?parseTime=true"),
		RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),

		GatewayBaseURL:      getenv("GATEWAY_BASE_URL", "https://api.sandbox.midtrans.com"),
		GatewayServerKey:    os.Getenv("GATEWAY_SERVER_KEY"),
		GatewayBasicAuthKey: os.Getenv("GATEWAY_BASIC_AUTH_KEY"),

		OrderNumberPrefix: getenv("ORDER_NUMBER_PREFIX", "RUN"),
		BibMin:            getenvInt("BIB_MIN", 1001),
		BibMax:            getenvInt("BIB_MAX", 9999),

		ReservationPolicy: domain.ReservationPolicy(getenv("RESERVATION_POLICY", string(domain.ReserveAtCreation))),
		IdentityField:     getenv("IDENTITY_FIELD", "nik"),
		FormSchemaPath:    os.Getenv("FORM_SCHEMA_PATH"),

		CORSAllowedOrigins: strings.Split(getenv("CORS_ALLOWED_ORIGINS", "*"), ","),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
