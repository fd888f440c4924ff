package app

import (
	"strings"

	"github.com/rationalmind/rationalmind-backend/internal/logger"
	"github.com/rationalmind/rationalmind-backend/internal/utils"
)

type Config struct {
	Port           string
	AllowedOrigins []string
}

func LoadConfig(log *logger.Logger) Config {
	rawOrigins := utils.GetEnv("ALLOWED_ORIGINS", "http://localhost:3000", log)
	origins := []string{}
	for _, o := range strings.Split(rawOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return Config{
		Port:           utils.GetEnv("PORT", "8080", log),
		AllowedOrigins: origins,
	}
}
