package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/your-org/vca/internal/traffic"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Vision   VisionConfig   `yaml:"vision"`
	Tracking TrackingConfig `yaml:"tracking"`
	Zones    []traffic.Zone `yaml:"zones"`
	Classes  ClassesConfig  `yaml:"classes"`
	Export   ExportConfig   `yaml:"export"`
	Emotion  EmotionConfig  `yaml:"emotion"`
	Display  DisplayConfig  `yaml:"display"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	APIKey      string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// Enabled reports whether a Postgres host is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether an object store endpoint is configured.
func (m MinIOConfig) Enabled() bool {
	return m.Endpoint != ""
}

type VisionConfig struct {
	ModelsDir           string  `yaml:"models_dir"`
	ONNXLibraryPath     string  `yaml:"onnx_library_path"`
	ObjectModel         string  `yaml:"object_model"`
	FaceModel           string  `yaml:"face_model"`
	EmotionModel        string  `yaml:"emotion_model"`
	DetectionThreshold  float64 `yaml:"detection_threshold"`
	FaceThreshold       float64 `yaml:"face_threshold"`
	NMSThreshold        float64 `yaml:"nms_threshold"`
	FPS                 int     `yaml:"fps"` // 0 keeps the source rate
	FrameWidth          int     `yaml:"frame_width"`
	ProgressEveryFrames int     `yaml:"progress_every_frames"`
}

type TrackingConfig struct {
	MaxAge       int     `yaml:"max_age"`
	MinHits      int     `yaml:"min_hits"`
	IoUThreshold float64 `yaml:"iou_threshold"`
}

type ClassesConfig struct {
	Vehicles []string          `yaml:"vehicles"`
	Persons  []string          `yaml:"persons"`
	Codes    map[string]string `yaml:"codes"`
}

// Categories builds the label mapping used by the tracker.
func (c ClassesConfig) Categories() *traffic.Categories {
	return traffic.NewCategories(c.Vehicles, c.Persons, c.Codes)
}

type ExportConfig struct {
	OutputDir     string `yaml:"output_dir"`
	Workbook      string `yaml:"workbook"`
	SQLitePath    string `yaml:"sqlite_path"`
	CountsChart   string `yaml:"counts_chart"`
	HeatmapChart  string `yaml:"heatmap_chart"`
	HTMLReport    string `yaml:"html_report"`
	UploadResults bool   `yaml:"upload_results"`
}

type EmotionConfig struct {
	SampleInterval time.Duration     `yaml:"sample_interval"`
	OutputVideo    string            `yaml:"output_video"`
	CurveFiles     map[string]string `yaml:"curve_files"`
}

type DisplayConfig struct {
	Enabled     bool   `yaml:"enabled"`
	WindowTitle string `yaml:"window_title"`
	QuitKey     string `yaml:"quit_key"`
	OutputVideo string `yaml:"output_video"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ReferenceZones is the entry/exit layout of the reference intersection video.
var ReferenceZones = []traffic.Zone{
	{Name: "A", X1: 300, Y1: 20, X2: 480, Y2: 100},
	{Name: "B", X1: 400, Y1: 125, X2: 600, Y2: 500},
	{Name: "C", X1: 0, Y1: 100, X2: 250, Y2: 220},
	{Name: "D", X1: 0, Y1: 250, X2: 300, Y2: 500},
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return parse(data)
}

// LoadOrDefault behaves like Load but falls back to defaults when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return parse(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if _, err := traffic.NewZoneSet(cfg.Zones); err != nil {
		return nil, fmt.Errorf("validate zones: %w", err)
	}
	return cfg, nil
}

// ZoneSet returns the validated zone configuration.
func (c *Config) ZoneSet() (*traffic.ZoneSet, error) {
	return traffic.NewZoneSet(c.Zones)
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 8082
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "vca"
	}
	if cfg.Vision.ModelsDir == "" {
		cfg.Vision.ModelsDir = "models"
	}
	if cfg.Vision.ObjectModel == "" {
		cfg.Vision.ObjectModel = "yolov8n.onnx"
	}
	if cfg.Vision.FaceModel == "" {
		cfg.Vision.FaceModel = "version-RFB-320.onnx"
	}
	if cfg.Vision.EmotionModel == "" {
		cfg.Vision.EmotionModel = "emotion-ferplus-8.onnx"
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.4
	}
	if cfg.Vision.FaceThreshold == 0 {
		cfg.Vision.FaceThreshold = 0.7
	}
	if cfg.Vision.NMSThreshold == 0 {
		cfg.Vision.NMSThreshold = 0.45
	}
	if cfg.Vision.ProgressEveryFrames == 0 {
		cfg.Vision.ProgressEveryFrames = 100
	}
	if cfg.Tracking.MaxAge == 0 {
		cfg.Tracking.MaxAge = 30
	}
	if cfg.Tracking.MinHits == 0 {
		cfg.Tracking.MinHits = 3
	}
	if cfg.Tracking.IoUThreshold == 0 {
		cfg.Tracking.IoUThreshold = 0.3
	}
	if cfg.Zones == nil {
		cfg.Zones = append([]traffic.Zone(nil), ReferenceZones...)
	}
	if len(cfg.Classes.Vehicles) == 0 {
		cfg.Classes.Vehicles = append([]string(nil), traffic.DefaultVehicleLabels...)
	}
	if len(cfg.Classes.Persons) == 0 {
		cfg.Classes.Persons = append([]string(nil), traffic.DefaultPersonLabels...)
	}
	if len(cfg.Classes.Codes) == 0 {
		cfg.Classes.Codes = make(map[string]string, len(traffic.DefaultCodes))
		for k, v := range traffic.DefaultCodes {
			cfg.Classes.Codes[k] = v
		}
	}
	if cfg.Export.OutputDir == "" {
		cfg.Export.OutputDir = "."
	}
	if cfg.Export.Workbook == "" {
		cfg.Export.Workbook = "detection_results.xlsx"
	}
	if cfg.Export.SQLitePath == "" {
		cfg.Export.SQLitePath = "results.db"
	}
	if cfg.Export.CountsChart == "" {
		cfg.Export.CountsChart = "counts.png"
	}
	if cfg.Export.HeatmapChart == "" {
		cfg.Export.HeatmapChart = "entry_exit_matrix.png"
	}
	if cfg.Export.HTMLReport == "" {
		cfg.Export.HTMLReport = "report.html"
	}
	if cfg.Emotion.SampleInterval == 0 {
		cfg.Emotion.SampleInterval = time.Second
	}
	if len(cfg.Emotion.CurveFiles) == 0 {
		cfg.Emotion.CurveFiles = map[string]string{
			"joy":      "curve_joy.png",
			"sadness":  "curve_sadness.png",
			"anger":    "curve_anger.png",
			"surprise": "curve_surprise.png",
		}
	}
	if cfg.Display.WindowTitle == "" {
		cfg.Display.WindowTitle = "Detection and tracking"
	}
	if cfg.Display.QuitKey == "" {
		cfg.Display.QuitKey = "q"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VCA_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("VCA_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("VCA_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("VCA_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("VCA_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("VCA_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("VCA_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("VCA_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("VCA_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("VCA_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("VCA_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("VCA_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("VCA_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("VCA_ONNX_LIBRARY"); v != "" {
		cfg.Vision.ONNXLibraryPath = v
	}
	if v := os.Getenv("VCA_OUTPUT_DIR"); v != "" {
		cfg.Export.OutputDir = v
	}
	if v := os.Getenv("VCA_DISPLAY"); v != "" {
		cfg.Display.Enabled = parseBool(v)
	}
	if v := os.Getenv("VCA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
