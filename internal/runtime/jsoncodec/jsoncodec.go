// Package jsoncodec is the JSON codec used for failure envelopes.
package jsoncodec

import "github.com/bytedance/sonic"

// defaultConfig keeps encoding/json compatible output (sorted map keys, escaped HTML).
var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}
