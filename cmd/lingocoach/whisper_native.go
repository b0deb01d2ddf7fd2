//go:build whisper_native

package main

import (
	"github.com/MrWong99/lingocoach/internal/config"
	"github.com/MrWong99/lingocoach/pkg/provider/stt"
	"github.com/MrWong99/lingocoach/pkg/provider/stt/whisper"
)

func init() {
	extraRegistrations = append(extraRegistrations, func(reg *config.Registry) {
		reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
			modelPath := entry.Model
			if modelPath == "" {
				modelPath = optString(entry.Options, "model_path")
			}
			var opts []whisper.NativeOption
			if lang := optString(entry.Options, "language"); lang != "" {
				opts = append(opts, whisper.WithNativeLanguage(lang))
			}
			if n := optFloat(entry.Options, "threads"); n > 0 {
				opts = append(opts, whisper.WithNativeThreads(uint(n)))
			}
			return whisper.NewNative(modelPath, opts...)
		})
	})
}
