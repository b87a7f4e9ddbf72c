package dataset

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/tradai/core/internal/market"
)

// Catalog maps (venue, symbol, channel type, day) to a day file on disk,
// day-partitioned under baseDir:
//
//	<baseDir>/<venue>/<channelType>/<symbol>/<YYYY-MM-DD>.arrow[.zst]
type Catalog struct {
	baseDir  string
	compress bool
}

// NewCatalog builds a Catalog rooted at baseDir. When compress is true,
// file names carry a .zst suffix and are read/written through
// klauspost/compress's zstd wrapper (openReader/openWriter).
func NewCatalog(baseDir string, compress bool) *Catalog {
	return &Catalog{baseDir: baseDir, compress: compress}
}

// PathFor returns the day file path for one (venue, symbol, channel, day).
func (c *Catalog) PathFor(venue, symbol string, chType market.ChannelType, day time.Time) string {
	name := fmt.Sprintf("%s.arrow", day.UTC().Format("2006-01-02"))
	if c.compress {
		name += ".zst"
	}
	return filepath.Join(c.baseDir, venue, string(chType), symbol, name)
}

// Compressed reports whether this catalog's day files are zstd-compressed.
func (c *Catalog) Compressed() bool { return c.compress }
