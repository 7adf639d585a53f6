package module

import (
	"strings"
	"time"

	"sarbatch/internal/platform/config"
)

// Options holds the scheduler configuration read from the environment
type Options struct {
	Workers      int           `validate:"gte=1,lte=256"`
	SceneWorkers int           `validate:"gte=1,lte=64"`
	SceneTimeout time.Duration `validate:"gte=0"`
	SiteTimeout  time.Duration `validate:"gte=0"`
	SiteRetries  int           `validate:"gte=1,lte=10"`
	RetryBase    time.Duration `validate:"gte=0"`

	Resolution    int      `validate:"gte=1,lte=1000"`
	Scaling       string   `validate:"oneof=db linear"`
	Sensors       []string `validate:"dive,required"`
	Product       string
	Mode          string
	Polarizations []string `validate:"dive,oneof=VV VH HH HV"`

	MainDir  string `validate:"required"`
	Leases   bool
	LeaseTTL time.Duration `validate:"gte=0"`

	// Reference store
	POEDir string `validate:"required"`
	RESDir string

	// Site catalog
	Catalog   string `validate:"required"`
	NameField string `validate:"required"`
	Lookup    string

	// Processing sink
	SinkCommand []string `validate:"min=1"`
	SinkThreads int      `validate:"gte=0"`
}

// FromConfig reads CORE_SCHED_*, CORE_ORBITS_*, CORE_SITES_* and CORE_SINK_*
func FromConfig(cfg config.Conf) Options {
	sc := cfg.Prefix("CORE_SCHED_")
	ob := cfg.Prefix("CORE_ORBITS_")
	st := cfg.Prefix("CORE_SITES_")
	sk := cfg.Prefix("CORE_SINK_")

	pols := sc.MayCSV("POLARIZATIONS", []string{"VV"})
	for i, p := range pols {
		pols[i] = strings.ToUpper(p)
	}

	return Options{
		Workers:      sc.MayInt("WORKERS", 4),
		SceneWorkers: sc.MayInt("SCENE_WORKERS", 1),
		SceneTimeout: sc.MayDuration("SCENE_TIMEOUT", 2*time.Hour),
		SiteTimeout:  sc.MayDuration("SITE_TIMEOUT", 0),
		SiteRetries:  sc.MayInt("SITE_RETRIES", 3),
		RetryBase:    sc.MayDuration("RETRY_BASE", 500*time.Millisecond),

		Resolution:    sc.MayInt("RESOLUTION", 20),
		Scaling:       sc.MayEnum("SCALING", "db", "db", "linear"),
		Sensors:       sc.MayCSV("SENSORS", []string{"S1A", "S1B"}),
		Product:       sc.MayString("PRODUCT", "GRD"),
		Mode:          sc.MayString("MODE", "IW"),
		Polarizations: pols,

		MainDir:  sc.MayPath("MAIN_DIR", ""),
		Leases:   sc.MayBool("LEASES", false),
		LeaseTTL: sc.MayDuration("LEASE_TTL", 6*time.Hour),

		POEDir: ob.MayPath("POE_DIR", ""),
		RESDir: ob.MayPath("RES_DIR", ""),

		Catalog:   st.MayPath("CATALOG", ""),
		NameField: st.MayString("NAME_FIELD", "Site_Name"),
		Lookup:    st.MayPath("LOOKUP", ""),

		SinkCommand: strings.Fields(sk.MayString("COMMAND", "")),
		SinkThreads: sk.MayInt("THREADS", 0),
	}
}
