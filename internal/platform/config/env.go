package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const (
	// EnvConfigPath は設定ファイルのパスを指定する環境変数です。
	EnvConfigPath = "CONFIG_PATH"

	defaultConfigPath = "assets/local.yaml"
	defaultDotEnv     = ".env"
)

// ResolvePath はフラグ値, CONFIG_PATH, 既定値の順に設定ファイルのパスを決めます。
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return defaultConfigPath
}

// LoadDotEnv は .env ファイルを環境変数へ読み込みます。既に設定済みの変数は上書きしません。
// ファイルが存在しない場合は何もしません。
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{defaultDotEnv}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}
