package engine

import (
	"github.com/iwvelando/feasibility-forecast/pkg/compliance"
	"github.com/iwvelando/feasibility-forecast/pkg/constants"
	"github.com/iwvelando/feasibility-forecast/pkg/datetime"
	"github.com/iwvelando/feasibility-forecast/pkg/lineitem"
	"github.com/iwvelando/feasibility-forecast/pkg/loans"
	"github.com/iwvelando/feasibility-forecast/pkg/schedule"
	"github.com/iwvelando/feasibility-forecast/pkg/validation"
)

// Project is descriptive metadata. StartDate (YYYY-MM) only changes month
// labels; Currency is carried for display and never converted.
type Project struct {
	Name      string
	Currency  string
	StartDate string
}

// Input is an immutable snapshot of everything one calculation needs.
// DiscountRate is an annual percent.
type Input struct {
	Project       Project
	LineItems     []lineitem.LineItem
	SaleLines     []lineitem.SaleLine
	RentalLines   []lineitem.RentalLine
	Loan          loans.Terms
	Equity        loans.Equity
	Compliance    compliance.Settings
	HorizonMonths int
	DiscountRate  float64
}

// DefaultInput returns an empty project with every default made explicit.
func DefaultInput() Input {
	return Input{
		Loan:          loans.Terms{RepaymentType: loans.RepaymentAmortized},
		Compliance:    compliance.DefaultSettings(),
		HorizonMonths: constants.DefaultHorizonMonths,
	}
}

// Clone returns a deep copy that shares no memory with in.
func (in Input) Clone() Input {
	out := in
	out.LineItems = append([]lineitem.LineItem(nil), in.LineItems...)
	out.SaleLines = append([]lineitem.SaleLine(nil), in.SaleLines...)
	out.RentalLines = append([]lineitem.RentalLine(nil), in.RentalLines...)
	out.Equity.Contributions = append([]loans.Contribution(nil), in.Equity.Contributions...)
	out.Compliance.Escrow.MilestoneReleaseMonth = cloneInt(in.Compliance.Escrow.MilestoneReleaseMonth)
	out.Compliance.Zakat.DueMonth = cloneInt(in.Compliance.Zakat.DueMonth)
	if in.Equity.ShortfallCommitment != nil {
		commitment := *in.Equity.ShortfallCommitment
		out.Equity.ShortfallCommitment = &commitment
	}
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Validate reports every invalid field of the input at once.
func (in Input) Validate() error {
	var c validation.Collector
	c.Add(schedule.ValidateHorizon(in.HorizonMonths))
	if err := datetime.ValidateStartDate(in.Project.StartDate); err != nil {
		c.Addf("project", "startDate", "%v", err)
	}
	if in.DiscountRate <= -100 {
		c.Addf("", "discountRate", "must be greater than -100 (%v)", in.DiscountRate)
	}
	c.Add(lineitem.Validate(in.LineItems, in.SaleLines, in.RentalLines))
	c.Add(in.Loan.Validate())
	c.Add(in.Equity.Validate())
	c.Add(in.Compliance.Validate(in.HorizonMonths))
	return c.Err()
}
