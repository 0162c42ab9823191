package storage

import (
	"github.com/pitchlab/matchclip/internal/config"
	"github.com/pitchlab/matchclip/internal/storage"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (storage.Uploader, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewHTTPUploader(c.StorageURL), nil
	})
}
