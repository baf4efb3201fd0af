// Package pricing computes the billed price of a procedure.
package pricing

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/dental-api/internal/model"
)

// Discount thresholds.
const (
	SeniorAge           = 60
	LoyaltySilverPoints = 100
	LoyaltyGoldPoints   = 200
)

var (
	AssistantFee = decimal.RequireFromString("50.00")

	SeniorDiscount        = decimal.RequireFromString("0.10")
	LoyaltySilverDiscount = decimal.RequireFromString("0.05")
	LoyaltyGoldDiscount   = decimal.RequireFromString("0.10")
	MaxDiscount           = decimal.RequireFromString("0.25")

	minutesPerHour = decimal.NewFromInt(60)
)

// Calculation holds every intermediate amount of a price computation.
type Calculation struct {
	MaterialCost   decimal.Decimal `json:"material_cost"`
	LaborCost      decimal.Decimal `json:"labor_cost"`
	AssistantFee   decimal.Decimal `json:"assistant_fee"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountRate   decimal.Decimal `json:"discount_rate"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalPrice     decimal.Decimal `json:"final_price"`
}

// Breakdown is the itemised calculation of a stored procedure.
type Breakdown struct {
	ProcedureID uuid.UUID `json:"procedure_id"`
	Calculation
	Text string `json:"text"`
}

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// DiscountRate returns the patient discount: 10% from age 60, plus 5% for
// 100-199 loyalty points or 10% from 200, capped at 25%.
func DiscountRate(p *model.Patient) decimal.Decimal {
	rate := decimal.Zero
	if p.Age >= SeniorAge {
		rate = rate.Add(SeniorDiscount)
	}
	switch {
	case p.LoyaltyPoints >= LoyaltyGoldPoints:
		rate = rate.Add(LoyaltyGoldDiscount)
	case p.LoyaltyPoints >= LoyaltySilverPoints:
		rate = rate.Add(LoyaltySilverDiscount)
	}
	return decimal.Min(rate, MaxDiscount)
}

// MaterialCost sums the billed value of every material on the procedure.
func MaterialCost(items []model.ProcedureMaterial) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.ProcedureValue())
	}
	return total
}

// LaborCost is rate x (duration / 60).
func LaborCost(ratePerHour, duration decimal.Decimal) decimal.Decimal {
	return ratePerHour.Mul(duration).Div(minutesPerHour)
}

// Calculate prices proc for patient. proc.Materials must already be resolved.
func (e *Engine) Calculate(proc *model.Procedure, patient *model.Patient) Calculation {
	return calculate(proc, DiscountRate(patient))
}

// ComputeFinalPrice returns the rounded price proc would be billed for patient.
func (e *Engine) ComputeFinalPrice(proc *model.Procedure, patient *model.Patient) decimal.Decimal {
	return e.Calculate(proc, patient).FinalPrice
}

// Breakdown rebuilds the calculation of a stored procedure from its material
// snapshot and recorded discount. The reported final price is the stored one.
func (e *Engine) Breakdown(proc *model.Procedure) Breakdown {
	calc := calculate(proc, proc.DiscountRate)
	calc.FinalPrice = proc.FinalPrice

	return Breakdown{
		ProcedureID: proc.ID,
		Calculation: calc,
		Text:        formatBreakdown(proc, calc),
	}
}

func calculate(proc *model.Procedure, discountRate decimal.Decimal) Calculation {
	calc := Calculation{
		MaterialCost: MaterialCost(proc.Materials),
		LaborCost:    LaborCost(proc.LaborRate, proc.Duration),
		AssistantFee: decimal.Zero,
		DiscountRate: discountRate,
	}
	if proc.AssistantUsed {
		calc.AssistantFee = AssistantFee
	}

	calc.Subtotal = calc.MaterialCost.Add(calc.LaborCost).Add(calc.AssistantFee)
	calc.DiscountAmount = calc.Subtotal.Mul(discountRate)
	calc.FinalPrice = calc.Subtotal.Sub(calc.DiscountAmount).Round(2)
	return calc
}

func formatBreakdown(proc *model.Procedure, calc Calculation) string {
	var b strings.Builder

	b.WriteString("=== CALCULATION BREAKDOWN ===\n")
	fmt.Fprintf(&b, "Materials: $ %s\n", calc.MaterialCost.StringFixed(2))
	for _, item := range proc.Materials {
		tag := ""
		if item.Reusable {
			tag = " (reusable, 10%)"
		}
		fmt.Fprintf(&b, "  - %s: $ %s%s\n", item.Name, item.ProcedureValue().StringFixed(2), tag)
	}
	fmt.Fprintf(&b, "Labor: $ %s ($ %s/h x %s min)\n",
		calc.LaborCost.StringFixed(2), proc.LaborRate.StringFixed(2), proc.Duration.StringFixed(2))
	if proc.AssistantUsed {
		fmt.Fprintf(&b, "Assistant: $ %s\n", calc.AssistantFee.StringFixed(2))
	}
	fmt.Fprintf(&b, "Subtotal: $ %s\n", calc.Subtotal.StringFixed(2))
	if calc.DiscountRate.IsPositive() {
		fmt.Fprintf(&b, "Patient discount (%s%%): -$ %s\n",
			calc.DiscountRate.Shift(2).StringFixed(0), calc.DiscountAmount.StringFixed(2))
	}
	fmt.Fprintf(&b, "FINAL PRICE: $ %s\n", calc.FinalPrice.StringFixed(2))
	b.WriteString("=============================")

	return b.String()
}
