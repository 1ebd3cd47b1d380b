package cli

import (
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/openkraft/issuegate/internal/adapters/outbound/cache"
	"github.com/openkraft/issuegate/internal/adapters/outbound/detector"
	"github.com/openkraft/issuegate/internal/adapters/outbound/gitinfo"
	"github.com/openkraft/issuegate/internal/adapters/outbound/history"
	"github.com/openkraft/issuegate/internal/adapters/outbound/parser"
	"github.com/openkraft/issuegate/internal/adapters/outbound/scanner"
	"github.com/openkraft/issuegate/internal/application"
	"github.com/openkraft/issuegate/internal/domain"
)

// stores are the durable stores below the data directory.
type stores struct {
	trend   *history.Store
	content *cache.Store
}

func openStores(s *settings) (*stores, error) {
	dir, err := s.dataDir()
	if err != nil {
		return nil, err
	}
	trend, err := history.Open(dir)
	if err != nil {
		return nil, err
	}
	return &stores{
		trend:   trend,
		content: cache.New(filepath.Join(dir, "affected-files")),
	}, nil
}

func (st *stores) Close() error { return st.trend.Close() }

func (st *stores) pipeline(metrics domain.PipelineMetrics, logger zerolog.Logger) *application.AnalysisService {
	return application.NewAnalysisService(application.AnalysisServiceOptions{
		Parsers: parser.Default(),
		Finder:  scanner.New(),
		Names:   detector.New(),
		Content: st.content,
		Trend:   st.trend,
		Commits: gitinfo.New(),
		Metrics: metrics,
		Logger:  logger,
	})
}
