package config

import (
	"fmt"

	"github.com/iwvelando/feasibility-forecast/pkg/compliance"
	"github.com/iwvelando/feasibility-forecast/pkg/engine"
	"github.com/iwvelando/feasibility-forecast/pkg/lineitem"
	"github.com/iwvelando/feasibility-forecast/pkg/loans"
	"github.com/iwvelando/feasibility-forecast/pkg/scenario"
)

// BaseScenarioName is used when no scenario is configured.
const BaseScenarioName = "base"

// ToInput converts the project section into the engine's base input.
func (c *Configuration) ToInput() engine.Input {
	p := c.Project
	in := engine.DefaultInput()
	in.Project = engine.Project{Name: p.Name, Currency: p.Currency, StartDate: p.StartDate}
	in.HorizonMonths = p.HorizonMonths
	in.DiscountRate = p.DiscountRate

	for _, item := range p.LineItems {
		in.LineItems = append(in.LineItems, lineitem.LineItem{
			Name:                item.Name,
			Category:            lineitem.Category(item.Category),
			BaseCost:            item.BaseCost,
			StartPeriod:         item.StartPeriod,
			EndPeriod:           item.EndPeriod,
			EscalationRate:      item.EscalationRate,
			RetentionPercent:    item.RetentionPercent,
			RetentionReleaseLag: item.RetentionReleaseLag,
		})
	}
	for _, sale := range p.SaleLines {
		in.SaleLines = append(in.SaleLines, lineitem.SaleLine{
			Name:                    sale.Name,
			Units:                   sale.Units,
			PricePerUnit:            sale.PricePerUnit,
			StartPeriod:             sale.StartPeriod,
			EndPeriod:               sale.EndPeriod,
			AnnualEscalationPercent: sale.AnnualEscalationPercent,
		})
	}
	for _, rental := range p.RentalLines {
		in.RentalLines = append(in.RentalLines, lineitem.RentalLine{
			Name:             rental.Name,
			Rooms:            rental.Rooms,
			ADR:              rental.ADR,
			OccupancyRate:    rental.OccupancyRate,
			StartPeriod:      rental.StartPeriod,
			EndPeriod:        rental.EndPeriod,
			AnnualEscalation: rental.AnnualEscalation,
		})
	}

	in.Loan = loans.Terms{
		Principal:          p.Loan.Principal,
		AnnualInterestRate: p.Loan.InterestRate,
		TermYears:          p.Loan.TermYears,
		GracePeriodMonths:  p.Loan.GracePeriodMonths,
		RepaymentType:      loans.RepaymentType(p.Loan.RepaymentType),
		StartPeriod:        p.Loan.StartPeriod,
	}
	if in.Loan.RepaymentType == "" {
		in.Loan.RepaymentType = loans.RepaymentAmortized
	}
	for _, contribution := range p.Equity.Contributions {
		in.Equity.Contributions = append(in.Equity.Contributions, loans.Contribution{
			Period: contribution.Period,
			Amount: contribution.Amount,
		})
	}
	if p.Equity.ShortfallCommitment != nil {
		commitment := *p.Equity.ShortfallCommitment
		in.Equity.ShortfallCommitment = &commitment
	}

	in.Compliance = compliance.Settings{
		VAT: compliance.VAT{
			Applicable:  p.Compliance.VAT.Applicable,
			RatePercent: p.Compliance.VAT.Rate,
			Registered:  p.Compliance.VAT.Registered,
		},
		Zakat: compliance.Zakat{
			Applicable:        p.Compliance.Zakat.Applicable,
			RatePercent:       p.Compliance.Zakat.Rate,
			CalculationMethod: compliance.CalculationMethod(p.Compliance.Zakat.CalculationMethod),
			ExcludeLosses:     p.Compliance.Zakat.ExcludeLosses,
			DueMonth:          p.Compliance.Zakat.DueMonth,
		},
		Escrow: compliance.Escrow{
			Enabled:               p.Compliance.Escrow.Enabled,
			Percentage:            p.Compliance.Escrow.Percentage,
			TriggerType:           compliance.TriggerType(p.Compliance.Escrow.TriggerType),
			ReleaseThreshold:      p.Compliance.Escrow.ReleaseThreshold,
			TriggerDetails:        p.Compliance.Escrow.TriggerDetails,
			MilestoneReleaseMonth: p.Compliance.Escrow.MilestoneReleaseMonth,
		},
	}
	defaults := compliance.DefaultSettings()
	if in.Compliance.Zakat.CalculationMethod == "" {
		in.Compliance.Zakat.CalculationMethod = defaults.Zakat.CalculationMethod
	}
	if in.Compliance.Escrow.TriggerType == "" {
		in.Compliance.Escrow.TriggerType = defaults.Escrow.TriggerType
	}

	// The engine treats its input as immutable; hand it its own copy.
	return in.Clone()
}

// ScenarioSets returns the active scenarios in configuration order. With
// no scenarios configured the project runs once as BaseScenarioName.
func (c *Configuration) ScenarioSets() []scenario.Scenario {
	if len(c.Scenarios) == 0 {
		return []scenario.Scenario{{Name: BaseScenarioName}}
	}
	var sets []scenario.Scenario
	for _, s := range c.Scenarios {
		if !s.Active {
			continue
		}
		sets = append(sets, scenario.Scenario{
			Name:      s.Name,
			Overrides: append([]scenario.Override(nil), s.Overrides...),
		})
	}
	return sets
}

// BaseScenario returns the comparison base: the configured base or the
// first active scenario.
func (c *Configuration) BaseScenario() (string, error) {
	sets := c.ScenarioSets()
	if len(sets) == 0 {
		return "", fmt.Errorf("no active scenarios")
	}
	if c.Comparison.Base == "" {
		return sets[0].Name, nil
	}
	for _, s := range sets {
		if s.Name == c.Comparison.Base {
			return s.Name, nil
		}
	}
	return "", fmt.Errorf("comparison base %q is not an active scenario", c.Comparison.Base)
}
