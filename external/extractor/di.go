package extractor

import (
	"github.com/pitchlab/matchclip/internal/config"
	"github.com/pitchlab/matchclip/internal/extractor"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (extractor.Extractor, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewHTTPExtractor(c.ExtractorURL, c.ExtractorAPIKey), nil
	})
}
