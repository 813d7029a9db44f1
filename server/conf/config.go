package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"

	"github.com/zhukovaskychina/xdataflash/logger"
)

// CommandLineArgs 命令行传入的配置参数
type CommandLineArgs struct {
	ConfigPath string
	ImagePath  string
}

/*
配置文件示例 (ini):

	[dataflash]
	image_path         = data/dataflash.img
	page_size          = 256
	pages_per_sector   = 256
	sectors            = 32
	double_buffer      = false
	sector_erase_check = true
	auto_erase         = false
	wrap_policy        = ring
	ready_timeout      = 50ms
	erase_batch        = 6
	erase_batch_delay  = 6ms

	[logs]
	log_level = info

同样的键也可以写在 .toml 文件的 [dataflash] / [logs] 表中。
*/
type Cfg struct {
	Raw *ini.File

	// dataflash
	ImagePath        string `default:"data/dataflash.img" yaml:"image_path" json:"image_path,omitempty"`
	PageSize         int    `default:"256" yaml:"page_size" json:"page_size,omitempty"`
	PagesPerSector   int    `default:"256" yaml:"pages_per_sector" json:"pages_per_sector,omitempty"`
	Sectors          int    `default:"32" yaml:"sectors" json:"sectors,omitempty"`
	DoubleBuffer     bool   `default:"false" yaml:"double_buffer" json:"double_buffer,omitempty"`
	SectorEraseCheck bool   `default:"true" yaml:"sector_erase_check" json:"sector_erase_check,omitempty"`
	AutoErase        bool   `default:"false" yaml:"auto_erase" json:"auto_erase,omitempty"`
	WrapPolicy       string `default:"ring" yaml:"wrap_policy" json:"wrap_policy,omitempty"`

	ReadyTimeout              string `default:"50ms" yaml:"ready_timeout" json:"ready_timeout,omitempty"`
	ReadyTimeoutDuration      time.Duration
	ReadyPollInterval         string `default:"50us" yaml:"ready_poll_interval" json:"ready_poll_interval,omitempty"`
	ReadyPollIntervalDuration time.Duration
	EraseBatch                int    `default:"6" yaml:"erase_batch" json:"erase_batch,omitempty"`
	EraseBatchDelay           string `default:"6ms" yaml:"erase_batch_delay" json:"erase_batch_delay,omitempty"`
	EraseBatchDelayDuration   time.Duration
	FormatSettleDelay         string `default:"100ms" yaml:"format_settle_delay" json:"format_settle_delay,omitempty"`
	FormatSettleDelayDuration time.Duration

	// logs
	LogError string `default:"" yaml:"log_error" json:"log_error,omitempty"`
	LogInfos string `default:"" yaml:"log_infos" json:"log_infos,omitempty"`
	LogLevel string `default:"info" yaml:"log_level" json:"log_level,omitempty"`
}

func NewCfg() *Cfg {
	return &Cfg{
		Raw:              ini.Empty(),
		ImagePath:        "data/dataflash.img",
		PageSize:         256,
		PagesPerSector:   256,
		Sectors:          32,
		DoubleBuffer:     false,
		SectorEraseCheck: true,
		AutoErase:        false,
		WrapPolicy:       "ring",

		ReadyTimeout:              "50ms",
		ReadyTimeoutDuration:      50 * time.Millisecond,
		ReadyPollInterval:         "50us",
		ReadyPollIntervalDuration: 50 * time.Microsecond,
		EraseBatch:                6,
		EraseBatchDelay:           "6ms",
		EraseBatchDelayDuration:   6 * time.Millisecond,
		FormatSettleDelay:         "100ms",
		FormatSettleDelayDuration: 100 * time.Millisecond,

		LogLevel: "info",
	}
}

// Load 读取配置文件并覆盖默认值；文件不存在时保留默认配置
func (cfg *Cfg) Load(args *CommandLineArgs) (*Cfg, error) {
	raw, err := cfg.loadConfiguration(args)
	if err != nil {
		return nil, err
	}
	cfg.Raw = raw

	if err := cfg.parseDataFlashCfg(cfg.Raw.Section("dataflash")); err != nil {
		return nil, err
	}
	cfg.parseLogsCfg(cfg.Raw.Section("logs"))

	if args != nil && args.ImagePath != "" {
		cfg.ImagePath = args.ImagePath
	}
	return cfg, nil
}

func (cfg *Cfg) loadConfiguration(args *CommandLineArgs) (*ini.File, error) {
	if args == nil || args.ConfigPath == "" {
		return ini.Empty(), nil
	}
	configFile := args.ConfigPath

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		logger.Debugf("配置文件不存在: %s，使用默认配置", configFile)
		return ini.Empty(), nil
	}

	if strings.EqualFold(filepath.Ext(configFile), ".toml") {
		return loadTomlAsIni(configFile)
	}

	parsedFile, err := ini.Load(configFile)
	if err != nil {
		return nil, errors.Wrapf(err, "parse config %s", configFile)
	}
	logger.Debugf("成功加载配置文件: %s", configFile)
	return parsedFile, nil
}

// loadTomlAsIni 把 toml 的一级表展开为同名 ini 分区，后续解析逻辑共用
func loadTomlAsIni(configFile string) (*ini.File, error) {
	tree, err := toml.LoadFile(configFile)
	if err != nil {
		return nil, errors.Wrapf(err, "parse config %s", configFile)
	}

	file := ini.Empty()
	for name, value := range tree.ToMap() {
		table, ok := value.(map[string]interface{})
		if !ok {
			continue
		}
		section := file.Section(name)
		for key, v := range table {
			if _, err := section.NewKey(key, fmt.Sprint(v)); err != nil {
				return nil, errors.Wrapf(err, "config key %s.%s", name, key)
			}
		}
	}
	logger.Debugf("成功加载配置文件: %s", configFile)
	return file, nil
}

func (cfg *Cfg) parseDataFlashCfg(section *ini.Section) error {
	if section == nil {
		return nil
	}

	imagePath, err := valueAsString(section, "image_path", cfg.ImagePath)
	if err == nil {
		cfg.ImagePath = imagePath
	}

	cfg.PageSize = section.Key("page_size").MustInt(cfg.PageSize)
	cfg.PagesPerSector = section.Key("pages_per_sector").MustInt(cfg.PagesPerSector)
	cfg.Sectors = section.Key("sectors").MustInt(cfg.Sectors)
	cfg.DoubleBuffer = section.Key("double_buffer").MustBool(cfg.DoubleBuffer)
	cfg.SectorEraseCheck = section.Key("sector_erase_check").MustBool(cfg.SectorEraseCheck)
	cfg.AutoErase = section.Key("auto_erase").MustBool(cfg.AutoErase)
	cfg.EraseBatch = section.Key("erase_batch").MustInt(cfg.EraseBatch)

	wrapPolicy, _ := valueAsString(section, "wrap_policy", cfg.WrapPolicy)
	wrapPolicy = strings.ToLower(wrapPolicy)
	if wrapPolicy != "ring" && wrapPolicy != "bounded" {
		return errors.Errorf("wrap_policy must be ring or bounded, got %q", wrapPolicy)
	}
	cfg.WrapPolicy = wrapPolicy

	durations := []struct {
		key string
		raw *string
		dst *time.Duration
	}{
		{"ready_timeout", &cfg.ReadyTimeout, &cfg.ReadyTimeoutDuration},
		{"ready_poll_interval", &cfg.ReadyPollInterval, &cfg.ReadyPollIntervalDuration},
		{"erase_batch_delay", &cfg.EraseBatchDelay, &cfg.EraseBatchDelayDuration},
		{"format_settle_delay", &cfg.FormatSettleDelay, &cfg.FormatSettleDelayDuration},
	}
	for _, d := range durations {
		value, _ := valueAsString(section, d.key, *d.raw)
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrapf(err, "time.ParseDuration(%s{%#v})", d.key, value)
		}
		*d.raw = value
		*d.dst = parsed
	}

	if !cfg.SectorEraseCheck && !cfg.AutoErase {
		return errors.New("sector_erase_check = false needs auto_erase = true, NOR pages must be erased before programming")
	}

	if cfg.PageSize <= 0 || cfg.PagesPerSector <= 0 || cfg.Sectors <= 0 {
		return errors.Errorf("invalid geometry page_size=%d pages_per_sector=%d sectors=%d",
			cfg.PageSize, cfg.PagesPerSector, cfg.Sectors)
	}
	return nil
}

func (cfg *Cfg) parseLogsCfg(section *ini.Section) {
	if section == nil {
		return
	}

	if logError, err := valueAsString(section, "log_error", cfg.LogError); err == nil {
		cfg.LogError = logError
	}
	if logInfos, err := valueAsString(section, "log_infos", cfg.LogInfos); err == nil {
		cfg.LogInfos = logInfos
	}

	logLevel, err := valueAsString(section, "log_level", cfg.LogLevel)
	if err != nil {
		return
	}
	cfg.LogLevel = strings.ToLower(logLevel)
	validLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	for _, level := range validLevels {
		if cfg.LogLevel == level {
			return
		}
	}
	logger.Debugf("警告: 无效的日志级别 '%s', 使用默认级别 'info'", logLevel)
	cfg.LogLevel = "info"
}

func valueAsString(section *ini.Section, keyName string, defaultValue string) (value string, err error) {
	if section == nil {
		return defaultValue, nil
	}
	value = section.Key(keyName).MustString(defaultValue)
	if value == "" {
		value = defaultValue
	}
	return value, nil
}
