package session

import (
	"github.com/pitchlab/matchclip/internal/capture"
	"github.com/pitchlab/matchclip/internal/config"
	"github.com/pitchlab/matchclip/internal/extractor"
	"github.com/pitchlab/matchclip/internal/media"
	"github.com/pitchlab/matchclip/internal/notify"
	"github.com/pitchlab/matchclip/internal/repository"
	"github.com/pitchlab/matchclip/internal/storage"
	"github.com/pitchlab/matchclip/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		device := do.MustInvoke[capture.Device](i)
		stt := do.MustInvoke[transcriber.Transcriber](i)
		ext := do.MustInvoke[extractor.Extractor](i)
		uploader := do.MustInvoke[storage.Uploader](i)
		transcoder := do.MustInvoke[media.Transcoder](i)
		notifier := do.MustInvoke[notify.Notifier](i)
		return NewManager(cfg, repo, device, stt, ext, uploader, transcoder, notifier), nil
	})
}
