package module

import "sarbatch/internal/platform/config"

// Options holds configuration for the report module
type Options struct {
	// Table is the ClickHouse table that receives per-site rows
	Table string `validate:"required,max=128"`
	// Print writes the text table to stdout at the end of a run
	Print bool
}

// FromConfig reads the report options with the CORE_REPORT_ prefix
func FromConfig(cfg config.Conf) Options {
	rc := cfg.Prefix("CORE_REPORT_")
	return Options{
		Table: rc.MayString("TABLE", "site_results"),
		Print: rc.MayBool("PRINT", true),
	}
}
