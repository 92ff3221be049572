package webhook

import "github.com/DevbyNaveen/X-Seven-sub001/internal/port/notifier"

func init() {
	notifier.Register(providerName, func(config map[string]string) (notifier.Notifier, error) {
		if config["url"] == "" {
			return nil, notifier.ErrNotConfigured
		}
		return NewNotifier(config["url"], config["secret"]), nil
	})
}
