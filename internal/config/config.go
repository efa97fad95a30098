package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/catalog"
)

type SyncConfig struct {
	Regions      []catalog.Region
	Conditions   []catalog.Condition
	Consignments []bool
	Currency     string
	TTL          time.Duration
	StaleLimit   int
	Volumes      bool
	Interval     time.Duration
}

type ReconcileConfig struct {
	OperationTimeout time.Duration
	PollSpacing      time.Duration
	BatchSize        int
	Interval         time.Duration
}

type ProviderConfig struct {
	APIKey    string
	RateFloor time.Duration
	RateCeil  time.Duration
}

func LoadSync() SyncConfig {
	regions := make([]catalog.Region, 0, 4)
	for _, r := range splitCSV(getenv("SYNC_REGIONS", "US,EU")) {
		regions = append(regions, catalog.Region(r))
	}
	conditions := make([]catalog.Condition, 0, 2)
	for _, c := range splitCSV(getenv("SYNC_CONDITIONS", "new")) {
		conditions = append(conditions, catalog.Condition(strings.ToLower(c)))
	}
	consignments := []bool{false}
	if parseBool("SYNC_CONSIGNED", false) {
		consignments = []bool{false, true}
	}
	return SyncConfig{
		Regions:      regions,
		Conditions:   conditions,
		Consignments: consignments,
		Currency:     getenv("SYNC_CURRENCY", "USD"),
		TTL:          parseDur("MARKET_DATA_TTL", 24*time.Hour),
		StaleLimit:   parseInt("SYNC_STALE_LIMIT", 20),
		Volumes:      parseBool("SYNC_VOLUMES", false),
		Interval:     parseDur("SYNC_INTERVAL", 30*time.Minute),
	}
}

func LoadReconcile() ReconcileConfig {
	return ReconcileConfig{
		OperationTimeout: parseDur("OPERATION_TIMEOUT", 15*time.Minute),
		PollSpacing:      parseDur("OPERATION_POLL_SPACING", 20*time.Second),
		BatchSize:        parseInt("OPERATION_POLL_BATCH", 50),
		Interval:         parseDur("OPERATION_POLL_INTERVAL", time.Minute),
	}
}

func LoadProvider(name string) ProviderConfig {
	prefix := strings.ToUpper(name)
	return ProviderConfig{
		APIKey:    os.Getenv(prefix + "_API_KEY"),
		RateFloor: parseDur(prefix+"_RATE_FLOOR", time.Second),
		RateCeil:  parseDur(prefix+"_RATE_CEIL", 30*time.Second),
	}
}

func splitCSV(csv string) []string {
	var out []string
	for _, p := range strings.Split(csv, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func parseDur(k string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if x, err := time.ParseDuration(v); err == nil {
			return x
		}
	}
	return def
}

func parseInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if x, err := strconv.Atoi(v); err == nil {
			return x
		}
	}
	return def
}

func parseBool(k string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if x, err := strconv.ParseBool(v); err == nil {
			return x
		}
	}
	return def
}
