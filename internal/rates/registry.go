package rates

import (
	"fmt"
	"os"
	"sync"

	"github.com/mubeyout/ladderd/internal/ladder"
)

// TariffParserFunc parses a published rate-sheet PDF into a band table.
type TariffParserFunc func(path string) (ladder.TierTable, error)

// TariffTextParserFunc parses extracted rate-sheet text into a band table.
type TariffTextParserFunc func(text string) (ladder.TierTable, error)

// TariffParser holds the configuration for one rate-sheet format.
type TariffParser struct {
	// Key is the unique identifier for this sheet format.
	Key string

	// Name is the human-readable name of the format.
	Name string

	// ParsePDF parses a PDF file at the given path.
	ParsePDF TariffParserFunc

	// ParseText parses extracted text from a PDF (useful for testing).
	ParseText TariffTextParserFunc
}

var (
	parsersMu sync.RWMutex
	parsers   = make(map[string]TariffParser)
)

// RegisterTariffParser registers a rate-sheet parser. Typically called from
// an init() function in the parser file.
func RegisterTariffParser(cfg TariffParser) {
	if cfg.Key == "" {
		panic("rates: RegisterTariffParser called with empty key")
	}
	if cfg.ParsePDF == nil {
		panic(fmt.Sprintf("rates: RegisterTariffParser(%q) called with nil ParsePDF", cfg.Key))
	}

	parsersMu.Lock()
	defer parsersMu.Unlock()

	if _, exists := parsers[cfg.Key]; exists {
		panic(fmt.Sprintf("rates: RegisterTariffParser called twice for key %q", cfg.Key))
	}
	parsers[cfg.Key] = cfg
}

// GetTariffParser returns the parser for a sheet format key.
func GetTariffParser(key string) (TariffParser, bool) {
	parsersMu.RLock()
	defer parsersMu.RUnlock()

	cfg, ok := parsers[key]
	return cfg, ok
}

// ListTariffParsers returns all registered parser keys.
func ListTariffParsers() []string {
	parsersMu.RLock()
	defer parsersMu.RUnlock()

	keys := make([]string, 0, len(parsers))
	for k := range parsers {
		keys = append(keys, k)
	}
	return keys
}

// ParseTariffPDF looks up the parser for a sheet format and parses the PDF
// at the given path.
func ParseTariffPDF(key, path string) (ladder.TierTable, error) {
	parser, ok := GetTariffParser(key)
	if !ok {
		return nil, fmt.Errorf("no tariff parser registered for format: %s", key)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("rate sheet not found at %s: %w", path, err)
	}
	return parser.ParsePDF(path)
}
