package config

import (
	"os"

	"SocialSync/tools/errs"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Load 读取 yaml 配置文件并解码为 AppConfig。
// yaml 先解到 map，再经 mapstructure 落到结构体，
// 这样后续接入配置中心时只需替换 map 的来源。
func Load(path string) (*AppConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.WrapMsg(err, "read config file", "path", path)
	}
	return Decode(raw)
}

// Decode 从 yaml 字节解码
func Decode(raw []byte) (*AppConfig, error) {
	var m map[string]any
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal yaml config")
	}

	var cfg AppConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, errs.Wrap(err)
	}
	if err := dec.Decode(m); err != nil {
		return nil, errs.WrapMsg(err, "decode config map")
	}
	cfg.Normalize()
	return &cfg, nil
}
