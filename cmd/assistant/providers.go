package main

// Notifier blank imports. Each import registers a factory with the notifier
// registry; buildNotifiers activates those with a configured target.

import (
	_ "github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/discord"
	_ "github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/slack"
	_ "github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/webhook"
)
