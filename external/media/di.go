package media

import (
	"github.com/pitchlab/matchclip/internal/config"
	"github.com/pitchlab/matchclip/internal/media"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (media.Transcoder, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewFFmpegTranscoder(c.FFmpegPath), nil
	})
}
