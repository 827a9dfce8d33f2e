// Package config defines the data structures related to configuration and
// includes functions for loading and parsing the config.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/feasibility-forecast/pkg/constants"
	"github.com/iwvelando/feasibility-forecast/pkg/optimization"
	"github.com/iwvelando/feasibility-forecast/pkg/scenario"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for feasibility-forecast.
type Configuration struct {
	Logging    LoggingConfig         `yaml:"logging,omitempty"`
	Output     OutputConfig          `yaml:"output,omitempty"`
	Project    Project               `yaml:"project"`
	Scenarios  []Scenario            `yaml:"scenarios,omitempty"`
	Comparison ComparisonConfig      `yaml:"comparison,omitempty"`
	BreakEven  []optimization.Target `yaml:"breakEven,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv, xlsx
	File   string `yaml:"file,omitempty"`   // required for xlsx
}

// ComparisonConfig names the scenario every other active scenario is
// compared against. Empty means the first active scenario.
type ComparisonConfig struct {
	Base string `yaml:"base,omitempty"`
}

// Project is the base case every scenario starts from.
type Project struct {
	Name          string       `yaml:"name"`
	Currency      string       `yaml:"currency,omitempty"`
	StartDate     string       `yaml:"startDate,omitempty"`
	HorizonMonths int          `yaml:"horizonMonths"`
	DiscountRate  float64      `yaml:"discountRate"`
	LineItems     []LineItem   `yaml:"lineItems,omitempty"`
	SaleLines     []SaleLine   `yaml:"saleLines,omitempty"`
	RentalLines   []RentalLine `yaml:"rentalLines,omitempty"`
	Loan          Loan         `yaml:"loan,omitempty"`
	Equity        Equity       `yaml:"equity,omitempty"`
	Compliance    Compliance   `yaml:"compliance,omitempty"`
}

// LineItem is a cost line. EscalationRate is a fraction per month.
type LineItem struct {
	Name                string  `yaml:"name"`
	Category            string  `yaml:"category"`
	BaseCost            float64 `yaml:"baseCost"`
	StartPeriod         int     `yaml:"startPeriod"`
	EndPeriod           int     `yaml:"endPeriod"`
	EscalationRate      float64 `yaml:"escalationRate,omitempty"`
	RetentionPercent    float64 `yaml:"retentionPercent,omitempty"`
	RetentionReleaseLag int     `yaml:"retentionReleaseLag,omitempty"`
}

// SaleLine is unit sales revenue.
type SaleLine struct {
	Name                    string  `yaml:"name"`
	Units                   int     `yaml:"units"`
	PricePerUnit            float64 `yaml:"pricePerUnit"`
	StartPeriod             int     `yaml:"startPeriod"`
	EndPeriod               int     `yaml:"endPeriod"`
	AnnualEscalationPercent float64 `yaml:"annualEscalationPercent,omitempty"`
}

// RentalLine is room revenue; OccupancyRate and AnnualEscalation are percents.
type RentalLine struct {
	Name             string  `yaml:"name"`
	Rooms            int     `yaml:"rooms"`
	ADR              float64 `yaml:"adr"`
	OccupancyRate    float64 `yaml:"occupancyRate"`
	StartPeriod      int     `yaml:"startPeriod"`
	EndPeriod        int     `yaml:"endPeriod"`
	AnnualEscalation float64 `yaml:"annualEscalation,omitempty"`
}

// Loan indicates the construction loan and its parameters.
type Loan struct {
	Principal         float64 `yaml:"principal,omitempty"`
	InterestRate      float64 `yaml:"interestRate,omitempty"` // annual percent
	TermYears         int     `yaml:"termYears,omitempty"`
	GracePeriodMonths int     `yaml:"gracePeriodMonths,omitempty"`
	RepaymentType     string  `yaml:"repaymentType,omitempty"`
	StartPeriod       int     `yaml:"startPeriod,omitempty"`
}

// Contribution is a scheduled equity injection.
type Contribution struct {
	Period int     `yaml:"period"`
	Amount float64 `yaml:"amount"`
}

// Equity holds the sponsor's contributions. Without a shortfallCommitment
// the sponsor covers every funding gap the loan leaves.
type Equity struct {
	Contributions       []Contribution `yaml:"contributions,omitempty"`
	ShortfallCommitment *float64       `yaml:"shortfallCommitment,omitempty"`
}

// Compliance groups the regulatory settings.
type Compliance struct {
	VAT    VAT    `yaml:"vat,omitempty"`
	Zakat  Zakat  `yaml:"zakat,omitempty"`
	Escrow Escrow `yaml:"escrow,omitempty"`
}

// VAT configures value added tax on costs.
type VAT struct {
	Applicable bool    `yaml:"applicable"`
	Rate       float64 `yaml:"rate,omitempty"`
	Registered bool    `yaml:"registered"`
}

// Zakat configures the levy. DueMonth defaults to the last horizon month.
type Zakat struct {
	Applicable        bool    `yaml:"applicable"`
	Rate              float64 `yaml:"rate,omitempty"`
	CalculationMethod string  `yaml:"calculationMethod,omitempty"`
	ExcludeLosses     bool    `yaml:"excludeLosses,omitempty"`
	DueMonth          *int    `yaml:"dueMonth,omitempty"`
}

// Escrow configures the off-plan sales reserve.
type Escrow struct {
	Enabled               bool    `yaml:"enabled"`
	Percentage            float64 `yaml:"percentage,omitempty"`
	TriggerType           string  `yaml:"triggerType,omitempty"`
	ReleaseThreshold      float64 `yaml:"releaseThreshold,omitempty"`
	TriggerDetails        string  `yaml:"triggerDetails,omitempty"`
	MilestoneReleaseMonth *int    `yaml:"milestoneReleaseMonth,omitempty"`
}

// Scenario holds the overrides of one what-if case.
type Scenario struct {
	Name      string              `yaml:"name"`
	Active    bool                `yaml:"active"`
	Overrides []scenario.Override `yaml:"overrides,omitempty"`
}

// defaults registers every implicit value so it is explicit after loading.
func defaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("output.format", constants.OutputFormatPretty)
	v.SetDefault("project.currency", "")
	v.SetDefault("project.horizonMonths", constants.DefaultHorizonMonths)
	v.SetDefault("project.discountRate", 0)
	v.SetDefault("project.loan.repaymentType", "amortized")
	v.SetDefault("project.compliance.vat.registered", true)
	v.SetDefault("project.compliance.zakat.rate", 2.5)
	v.SetDefault("project.compliance.zakat.calculationMethod", "net_profit")
	v.SetDefault("project.compliance.escrow.triggerType", "construction_percent")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	defaults(v)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}
	return decode(v)
}

// LoadConfigurationFromReader loads a YAML-formatted configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	return &configuration, nil
}
