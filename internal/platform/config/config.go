package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	// 実行環境に tzdata が無くても Asia/Jakarta を解決できるようにします。
	_ "time/tzdata"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	// AppName はデータディレクトリ名に使うアプリケーション名です。
	AppName = "absensi-wa-bot"

	// EnvGeminiAPIKey は assistant.api_key を上書きする環境変数です。
	EnvGeminiAPIKey = "GEMINI_API_KEY"

	defaultTimezone       = "Asia/Jakarta"
	defaultSendTimeout    = 15 * time.Second
	defaultReconnectDelay = 5 * time.Second
	defaultAssistantModel = "gemini-2.5-flash"
	defaultAssistantTO    = 20 * time.Second
	defaultDocumentsDir   = "documents"
	defaultOrganization   = "PT. Djemoendo"
	defaultPollInterval   = 2 * time.Minute
	defaultPollLookback   = 10 * time.Minute
	defaultConcurrency    = 4
	defaultLateAfter      = "07:00"
	defaultPollSpec       = "*/2 6-20 * * *"
	defaultMorningSpec    = "0 7 * * 1-5"
	defaultAfternoonSpec  = "0 17 * * 1-5"
	defaultResetSpec      = "0 0 * * *"
)

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Timezone  string          `yaml:"timezone"`
	WhatsApp  WhatsAppConfig  `yaml:"whatsapp"`
	Assistant AssistantConfig `yaml:"assistant"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Poller    PollerConfig    `yaml:"poller"`
	Schedule  ScheduleConfig  `yaml:"schedule"`

	location *time.Location
}

// ServerConfig は gRPC ヘルスチェックサーバーに関する設定です。
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// WhatsAppConfig はメッセージングゲートウェイに関する設定です。
type WhatsAppConfig struct {
	GatewayURL        string        `yaml:"gateway_url"`
	Token             string        `yaml:"token"`
	SendTimeout       time.Duration `yaml:"-"`
	ReconnectDelay    time.Duration `yaml:"-"`
	SendTimeoutRaw    string        `yaml:"send_timeout"`
	ReconnectDelayRaw string        `yaml:"reconnect_delay"`
}

// AssistantConfig は生成 AI による回答に関する設定です。APIKey が空の場合は回答機能が無効になります。
type AssistantConfig struct {
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	Endpoint     string        `yaml:"endpoint"`
	Timeout      time.Duration `yaml:"-"`
	TimeoutRaw   string        `yaml:"timeout"`
	DocumentsDir string        `yaml:"documents_dir"`
	Organization string        `yaml:"organization"`
}

// LedgerConfig は通知・返信台帳の保存先です。
type LedgerConfig struct {
	Dir string `yaml:"dir"`
}

// NotificationsPath は通知台帳ファイルのパスを返します。
func (l LedgerConfig) NotificationsPath() string {
	return filepath.Join(l.Dir, "notifications.json")
}

// RepliesPath は返信台帳ファイルのパスを返します。
func (l LedgerConfig) RepliesPath() string {
	return filepath.Join(l.Dir, "replies.json")
}

// PollerConfig は勤怠イベントのポーリング設定です。
type PollerConfig struct {
	Interval    time.Duration `yaml:"-"`
	Lookback    time.Duration `yaml:"-"`
	IntervalRaw string        `yaml:"interval"`
	LookbackRaw string        `yaml:"lookback"`
	Concurrency int           `yaml:"concurrency"`
	LateAfter   string        `yaml:"late_after"`
}

// ScheduleConfig は各ジョブの cron 式です。
type ScheduleConfig struct {
	Poll      string `yaml:"poll"`
	Morning   string `yaml:"morning"`
	Afternoon string `yaml:"afternoon"`
	Reset     string `yaml:"reset"`
}

// Load は指定されたパスから設定ファイルを読み込みます。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location は timezone で指定されたタイムゾーンを返します。
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

func (c *Config) applyEnv() {
	if key := strings.TrimSpace(os.Getenv(EnvGeminiAPIKey)); key != "" {
		c.Assistant.APIKey = key
	}
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}

	db := &c.Database
	if err := db.validateAndNormalize(); err != nil {
		return err
	}

	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("config: timezone: %w", err)
	}
	c.location = loc

	if err := c.WhatsApp.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Assistant.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Ledger.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Poller.validateAndNormalize(); err != nil {
		return err
	}
	c.Schedule.normalize()

	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (w *WhatsAppConfig) validateAndNormalize() error {
	if w.GatewayURL == "" {
		return fmt.Errorf("config: whatsapp.gateway_url must be set")
	}
	u, err := url.Parse(w.GatewayURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: whatsapp.gateway_url must be an http(s) URL")
	}
	w.GatewayURL = strings.TrimRight(w.GatewayURL, "/")

	timeout, err := parseDurationOrDefault(w.SendTimeoutRaw, defaultSendTimeout)
	if err != nil {
		return fmt.Errorf("config: whatsapp.send_timeout: %w", err)
	}
	w.SendTimeout = timeout

	delay, err := parseDurationOrDefault(w.ReconnectDelayRaw, defaultReconnectDelay)
	if err != nil {
		return fmt.Errorf("config: whatsapp.reconnect_delay: %w", err)
	}
	w.ReconnectDelay = delay

	return nil
}

func (a *AssistantConfig) validateAndNormalize() error {
	if a.Model == "" {
		a.Model = defaultAssistantModel
	}
	if a.DocumentsDir == "" {
		a.DocumentsDir = defaultDocumentsDir
	}
	if a.Organization == "" {
		a.Organization = defaultOrganization
	}

	timeout, err := parseDurationOrDefault(a.TimeoutRaw, defaultAssistantTO)
	if err != nil {
		return fmt.Errorf("config: assistant.timeout: %w", err)
	}
	a.Timeout = timeout

	return nil
}

// Enabled は API キーが設定されているかを返します。
func (a AssistantConfig) Enabled() bool {
	return strings.TrimSpace(a.APIKey) != ""
}

func (l *LedgerConfig) validateAndNormalize() error {
	if l.Dir != "" {
		return nil
	}
	if xdg.DataHome == "" {
		return fmt.Errorf("config: ledger.dir must be set")
	}
	l.Dir = filepath.Join(xdg.DataHome, AppName)
	return nil
}

func (p *PollerConfig) validateAndNormalize() error {
	interval, err := parseDurationOrDefault(p.IntervalRaw, defaultPollInterval)
	if err != nil {
		return fmt.Errorf("config: poller.interval: %w", err)
	}
	p.Interval = interval

	lookback, err := parseDurationOrDefault(p.LookbackRaw, defaultPollLookback)
	if err != nil {
		return fmt.Errorf("config: poller.lookback: %w", err)
	}
	p.Lookback = lookback

	if p.Lookback < p.Interval {
		return fmt.Errorf("config: poller.lookback (%s) must be at least poller.interval (%s)", p.Lookback, p.Interval)
	}

	if p.Concurrency <= 0 {
		p.Concurrency = defaultConcurrency
	}

	if p.LateAfter == "" {
		p.LateAfter = defaultLateAfter
	}
	if !clockPattern.MatchString(p.LateAfter) {
		return fmt.Errorf("config: poller.late_after must be HH:MM, got %q", p.LateAfter)
	}

	return nil
}

func (s *ScheduleConfig) normalize() {
	if s.Poll == "" {
		s.Poll = defaultPollSpec
	}
	if s.Morning == "" {
		s.Morning = defaultMorningSpec
	}
	if s.Afternoon == "" {
		s.Afternoon = defaultAfternoonSpec
	}
	if s.Reset == "" {
		s.Reset = defaultResetSpec
	}
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

func parseDurationOrDefault(raw string, def time.Duration) (time.Duration, error) {
	d, err := parseDurationAllowEmpty(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + strconv.Itoa(d.Port),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}
