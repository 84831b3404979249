// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy
// of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

package compaction

import (
	"context"
	"time"

	"github.com/blang/semver/v4"
	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/petrel-io/petrel/internal/metastore"
	"github.com/petrel-io/petrel/internal/storage"
	"github.com/petrel-io/petrel/pkg/log"
	"github.com/petrel-io/petrel/pkg/metrics"
	"github.com/petrel-io/petrel/pkg/util/paramtable"
	"github.com/petrel-io/petrel/pkg/util/perr"
)

// BlockCatalog enumerates the blocks eligible for one compaction pass and
// serves their footers to planning. Footer reads go through an LRU cache with
// bounded retry; any unrecoverable read error aborts the whole pass, no
// partial catalog is usable.
type BlockCatalog struct {
	lister  storage.BlockLister
	footers storage.FooterReader

	cache      *lru.Cache[string, *storage.Footer]
	minVersion semver.Version
	retries    uint64
}

// CatalogResult is the eligible block set, plus the update-delta schema
// baseline when that mode applies.
type CatalogResult struct {
	Blocks []*storage.Block
	// Baseline is the footer of the source segment's most-recently-updated
	// block; nil outside update-delta compaction.
	Baseline *storage.Footer
}

func NewBlockCatalog(lister storage.BlockLister, footers storage.FooterReader) (*BlockCatalog, error) {
	cfg := &paramtable.Get().CompactionCfg
	minVersion, err := semver.Parse(cfg.MinSupportedFormatVersion.GetValue())
	if err != nil {
		return nil, perr.WrapErrIllegalPlan("bad minSupportedFormatVersion: " + err.Error())
	}
	cache, err := lru.New[string, *storage.Footer](cfg.FooterCacheSize.GetAsInt())
	if err != nil {
		return nil, err
	}
	return &BlockCatalog{
		lister:     lister,
		footers:    footers,
		cache:      cache,
		minVersion: minVersion,
		retries:    uint64(cfg.FooterReadRetries.GetAsInt()),
	}, nil
}

// ListEligibleBlocks produces the full eligible block list across the valid
// segments, excluding legacy-format blocks and blocks invalidated by the
// update/delete status snapshot.
func (c *BlockCatalog) ListEligibleBlocks(
	ctx context.Context,
	segments []*storage.Segment,
	snapshot *metastore.UpdateStatusSnapshot,
	typ CompactionType,
) (*CatalogResult, error) {
	logger := log.Ctx(ctx)

	valid := make([]*storage.Segment, 0, len(segments))
	for _, seg := range segments {
		if seg.IsValid() {
			valid = append(valid, seg)
		} else {
			logger.Info("skipping invalid segment",
				zap.String("segmentID", seg.ID), zap.String("state", seg.State.String()))
		}
	}
	if typ == TypeUpdateDelta && len(valid) != 1 {
		return nil, perr.WrapErrSegmentLack(1, len(valid))
	}

	perSegment := make([][]*storage.Block, len(valid))
	g, gCtx := errgroup.WithContext(ctx)
	for i, seg := range valid {
		i, seg := i, seg
		g.Go(func() error {
			blocks, err := c.lister.ListBlocks(gCtx, seg)
			if err != nil {
				return perr.WrapErrPlanningIO(seg.ID, err)
			}
			perSegment[i] = blocks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	eligible := make([]*storage.Block, 0)
	legacy, invalidated := 0, 0
	for _, blocks := range perSegment {
		for _, block := range blocks {
			if err := c.checkFormat(block); err != nil {
				legacy++
				logger.Warn("skipping block with unsupported storage format", zap.Error(err))
				continue
			}
			if snapshot.IsBlockInvalidated(block) {
				invalidated++
				continue
			}
			eligible = append(eligible, block)
		}
	}
	logger.Info("catalog enumerated eligible blocks",
		zap.Int("segments", len(valid)),
		zap.Int("eligible", len(eligible)),
		zap.Int("legacySkipped", legacy),
		zap.Int("invalidatedSkipped", invalidated))

	result := &CatalogResult{Blocks: eligible}
	if typ == TypeUpdateDelta {
		baseline, err := c.latestFooter(ctx, eligible)
		if err != nil {
			return nil, err
		}
		result.Baseline = baseline
	}
	return result, nil
}

// Footer returns a block's footer, cached. Transient read failures retry with
// exponential backoff; a persistent failure is fatal to planning.
func (c *BlockCatalog) Footer(ctx context.Context, block *storage.Block) (*storage.Footer, error) {
	if footer, ok := c.cache.Get(block.Path); ok {
		metrics.FooterCacheHits.Inc()
		return footer, nil
	}
	metrics.FooterCacheMisses.Inc()

	var footer *storage.Footer
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(10*time.Millisecond),
			backoff.WithMaxInterval(time.Second),
		), c.retries), ctx)
	err := backoff.Retry(func() error {
		var readErr error
		footer, readErr = c.footers.ReadFooter(ctx, block)
		return readErr
	}, policy)
	if err != nil {
		return nil, perr.WrapErrPlanningIO(block.Path, err)
	}
	// A footer that decodes without a schema cannot describe its block;
	// retrying will not improve it.
	if footer == nil || len(footer.Schema) == 0 {
		return nil, perr.WrapErrFooterCorrupted(block.Path)
	}
	c.cache.Add(block.Path, footer)
	return footer, nil
}

// latestFooter reads the footer of the most-recently-updated block so
// update-delta planning can adopt that segment's schema and cardinality as
// the merge target baseline without consulting other segments.
func (c *BlockCatalog) latestFooter(ctx context.Context, blocks []*storage.Block) (*storage.Footer, error) {
	if len(blocks) == 0 {
		return nil, perr.WrapErrIllegalPlan("update-delta compaction with no eligible blocks")
	}
	ordered := append([]*storage.Block(nil), blocks...)
	storage.SortBlocksByUpdateTime(ordered)
	return c.Footer(ctx, ordered[len(ordered)-1])
}

// checkFormat gates a block on the minimum supported storage format version.
// Unparsable versions predate versioned footers and are treated as legacy.
func (c *BlockCatalog) checkFormat(block *storage.Block) error {
	version, err := semver.Parse(block.FormatVersion)
	if err != nil || version.LT(c.minVersion) {
		return perr.WrapErrBlockLegacyFormat(block.Path, block.FormatVersion)
	}
	return nil
}
