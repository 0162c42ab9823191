package notify

import (
	"github.com/pitchlab/matchclip/internal/config"
	"github.com/pitchlab/matchclip/internal/notify"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*WSHub, error) {
		return NewWSHub(), nil
	})
	do.Provide(injector, func(i do.Injector) (notify.Notifier, error) {
		c := do.MustInvoke[*config.Config](i)
		hub := do.MustInvoke[*WSHub](i)
		return NewFanout(hub, NewHTTPWebhook(c.NotifyWebhookURL)), nil
	})
}
