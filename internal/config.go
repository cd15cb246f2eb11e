package internal

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Blob backends selectable with BLOB_BACKEND.
const (
	BlobBackendDisk = "disk"
	BlobBackendS3   = "s3"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL,default=INFO"`
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=8080"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	AuthSecret        string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=360h"`
	AdminSecretKey    string        `env:"ADMIN_SECRET_KEY,required=true"`
	SecureCookies     bool          `env:"SECURE_COOKIES,default=false"`
	// AllowedOrigins is a comma separated list of browser origins.
	AllowedOrigins     string `env:"ALLOWED_ORIGINS"`
	InsecureSkipVerify bool   `env:"WS_INSECURE_SKIP_VERIFY,default=false"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PingInterval         time.Duration `env:"PING_INTERVAL,default=25s"`
	PersistenceBuffer    int           `env:"PERSISTENCE_BUFFER_SIZE,default=1024"`
	PersistenceTimeout   time.Duration `env:"PERSISTENCE_TIMEOUT,default=5s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=10s"`
	ReportInterval       time.Duration `env:"REPORT_INTERVAL,default=1m"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	MaxUploadBytes       int           `env:"MAX_UPLOAD_BYTES,default=5242880"`

	// CensoredWords is a comma separated moderation dictionary; empty disables it.
	CensoredWords             string `env:"CENSORED_WORDS"`
	ModerationCharReplacement string `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`

	BlobBackend   string `env:"BLOB_BACKEND,default=disk"`
	UploadsDir    string `env:"UPLOADS_DIR,default=./uploads"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL,default=/uploads"`
	S3Region      string `env:"S3_REGION"`
	S3Bucket      string `env:"S3_BUCKET"`
	S3Endpoint    string `env:"S3_ENDPOINT"`
	S3PublicURL   string `env:"S3_PUBLIC_URL"`
	S3PathStyle   bool   `env:"S3_PATH_STYLE,default=false"`
}

// LoadConfig reads the process environment, after loading envFile when one
// is given.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, err
	}
	return config, config.Validate()
}

func (c Config) Validate() error {
	switch c.BlobBackend {
	case BlobBackendDisk:
	case BlobBackendS3:
		if c.S3Bucket == "" || c.S3Region == "" {
			return fmt.Errorf("BLOB_BACKEND=s3 requires S3_BUCKET and S3_REGION")
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}
	if utf8.RuneCountInString(c.ModerationCharReplacement) != 1 {
		return fmt.Errorf("MODERATION_CHARACTER_REPLACEMENT must be a single character")
	}
	if len(c.AuthSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	return nil
}

func (c Config) Origins() []string {
	return splitList(c.AllowedOrigins)
}

func (c Config) CensoredWordList() []string {
	return splitList(c.CensoredWords)
}

func (c Config) CensorChar() rune {
	r, _ := utf8.DecodeRuneInString(c.ModerationCharReplacement)
	return r
}

func splitList(list string) []string {
	var res []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			res = append(res, item)
		}
	}
	return res
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
