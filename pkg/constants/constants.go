// Package constants provides shared constants for the feasibility-forecast application.
package constants

// DateTimeLayout is the format expected for the project start date and is
// also the month label format in output.
const DateTimeLayout = "2006-01"

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// DaysPerMonth is the average number of nights in a month, used to turn
	// a nightly rate into monthly rental revenue.
	DaysPerMonth = 365.0 / 12.0


	// CurrencyDecimalPlaces is the number of decimal places kept for money
	CurrencyDecimalPlaces = 2

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0
)

// Horizon constants
const (
	// DefaultHorizonMonths is the projection horizon used when none is configured
	DefaultHorizonMonths = 60

	// MaxHorizonMonths bounds the projection so a run always finishes quickly
	MaxHorizonMonths = 1200
)

// Financing policy constants
const (
	// GraduatedInitialFraction is the share of the amortized payment paid
	// during the first phase of a graduated loan.
	GraduatedInitialFraction = 0.5

	// GraduatedPhaseDivisor splits the repayment months; the first
	// 1/GraduatedPhaseDivisor of them pay the reduced amount.
	GraduatedPhaseDivisor = 3
)

// KPI solver constants
const (
	// IRRLowerBound is the lowest periodic rate tried by the IRR search
	IRRLowerBound = -0.99

	// IRRUpperBound is the highest periodic rate tried by the IRR search
	IRRUpperBound = 10.0

	// IRRMaxIterations bounds the bisection loop
	IRRMaxIterations = 100

	// IRRTolerance is the NPV tolerance at which the IRR search stops
	IRRTolerance = 1e-6

	// IRRBracketWidth is the bracket width at which the root is located to
	// machine precision even if the NPV tolerance was not met.
	IRRBracketWidth = 1e-12
)

// Break-even search constants
const (
	// BreakEvenMaxIterations bounds the multiplier bisection
	BreakEvenMaxIterations = 60

	// BreakEvenTolerance is the multiplier bracket width at which the search stops
	BreakEvenTolerance = 1e-6
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatXLSX is the spreadsheet output format
	OutputFormatXLSX = "xlsx"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix is the prefix for environment variable overrides
	EnvPrefix = "FEASIBILITY"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum upload size for YAML configs (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024

	// DefaultCacheTTLSeconds is how long cached results are kept
	DefaultCacheTTLSeconds = 600

	// DefaultDebounceMillis is the quiet period before a watched config is recalculated
	DefaultDebounceMillis = 300
)

// Validation constants
const (
	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// FloatTolerance is the tolerance for exact-recurrence checks
	FloatTolerance = 1e-6
)
