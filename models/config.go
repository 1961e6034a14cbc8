package models

// Config holds connection settings and runtime options for the server.
type Config struct {
	DBHost     string `json:"db_host"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	DBName     string `json:"db_name"`
	DBSSLMode  string `json:"db_sslmode"`

	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`

	JWTSecret string `json:"jwt_secret"`

	GeneratorURL     string `json:"generator_url"`
	GeneratorTimeout int    `json:"generator_timeout"` // seconds

	AllowedOrigins []string `json:"allowed_origins"`
	ListenAddr     string   `json:"listen_addr"`
}
