package discord

import "github.com/DevbyNaveen/X-Seven-sub001/internal/port/notifier"

func init() {
	notifier.Register(providerName, func(cfg map[string]string) (notifier.Notifier, error) {
		url := cfg["webhook_url"]
		if url == "" {
			return nil, notifier.ErrNotConfigured
		}
		return NewNotifier(url, cfg["username"]), nil
	})
}
