package capture

import (
	"github.com/pitchlab/matchclip/internal/capture"
	"github.com/pitchlab/matchclip/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (capture.Device, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewFFmpegDevice(c.FFmpegPath), nil
	})
}
