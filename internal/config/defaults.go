package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Remote: RemoteConfig{
			Enable:           true,
			Host:             "127.0.0.1",
			Port:             6050,
			TimeoutMS:        120_000,
			FocusOnArguments: true,
		},
		Focus: FocusConfig{
			Backend: "hypr",
			Window:  "class:^(refkeep)$",
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "refkeep",
			SoundEnable:    true,
			TimeoutMS:      2500,
		},
		History: HistoryConfig{
			Enable:      true,
			RecentLimit: 10,
		},
		Log: LogConfig{Level: "info"},
	}
}
