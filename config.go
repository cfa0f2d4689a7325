package heapdb

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// DefaultPageSize is the default fixed page size in bytes (§3 HeapPage).
// Tests may override the active PageSize through Config.Apply; production
// code should treat the active value as
// fixed for the lifetime of a data directory, since HeapFile offsets are
// page-size multiples.
const DefaultPageSize = 4096

// DefaultStringLength is the fixed payload width, in bytes, of a STRING
// field (§6 "Tuple field encoding") absent an explicit override.
const DefaultStringLength = 32

// PageSize and StringLength are the active values consulted by HeapPage,
// HeapFile, and Tuple encoding. They mirror the teacher's package-level
// PageSize/StringLength globals: plain identifiers referenced directly
// throughout the kernel rather than threaded through every constructor.
// Apply a Config before opening any HeapFile to change them; a table's
// width is only deterministic (§3) if these stay fixed for the table's
// lifetime.
var (
	PageSize     = DefaultPageSize
	StringLength = DefaultStringLength
)

// Apply installs cfg's page size and string length as the active globals.
func (c Config) Apply() {
	PageSize = c.PageSize
	StringLength = c.StringLength
}

// Config holds the kernel's tunable parameters: page size, buffer pool
// capacity, and the on-disk data directory. Grounded on
// calvinalkan-agent-task's hujson-backed Config loader — the one example in
// the pack with a config file concern at all — generalized from a ticket
// tool's settings to the storage kernel's.
type Config struct {
	PageSize     int    `json:"page_size,omitempty"`
	StringLength int    `json:"string_length,omitempty"`
	BufferPages  int    `json:"buffer_pages"`
	DataDir      string `json:"data_dir,omitempty"`
}

// DefaultConfig returns the kernel's default configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:     DefaultPageSize,
		StringLength: DefaultStringLength,
		BufferPages:  100,
		DataDir:      ".",
	}
}

// LoadConfig reads a JSONC (JSON-with-comments) config file at path,
// standardizing it with hujson before unmarshaling, and overlays it onto
// DefaultConfig(). A missing file is not an error: the defaults are
// returned as-is, matching the teacher pack's "optional project config"
// precedence rule.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, wrapErr(IOError, "reading config file "+path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, wrapErr(MalformedDataError, "config file is not valid JSONC: "+path, err)
	}

	var overlay Config
	if err := json.Unmarshal(standardized, &overlay); err != nil {
		return Config{}, wrapErr(MalformedDataError, "config file failed to parse: "+path, err)
	}

	if overlay.PageSize != 0 {
		cfg.PageSize = overlay.PageSize
	}
	if overlay.StringLength != 0 {
		cfg.StringLength = overlay.StringLength
	}
	if overlay.BufferPages != 0 {
		cfg.BufferPages = overlay.BufferPages
	}
	if overlay.DataDir != "" {
		cfg.DataDir = overlay.DataDir
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports a MalformedDataError if the page size, string length or
// buffer page count is not positive. It does not check that a tuple of any
// particular schema fits in one page; newHeapPage rejects a schema whose
// tuple width leaves no slot.
func (c Config) Validate() error {
	if c.PageSize <= 0 {
		return newErr(MalformedDataError, fmt.Sprintf("page size must be positive, got %d", c.PageSize))
	}
	if c.StringLength <= 0 {
		return newErr(MalformedDataError, fmt.Sprintf("string length must be positive, got %d", c.StringLength))
	}
	if c.BufferPages <= 0 {
		return newErr(MalformedDataError, fmt.Sprintf("buffer pages must be positive, got %d", c.BufferPages))
	}
	return nil
}
