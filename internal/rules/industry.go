package rules

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// IndustryAdjustment scales the financial cut-points for one industry.
// A multiplier above 1 raises the bar for that ratio.
type IndustryAdjustment struct {
	Liquidity float64 `json:"liquidity" yaml:"liquidity"`
	Debt      float64 `json:"debt" yaml:"debt"`
	Margin    float64 `json:"margin" yaml:"margin"`
}

var neutralAdjustment = IndustryAdjustment{Liquidity: 1, Debt: 1, Margin: 1}

// Technology runs lean on working capital and carries higher margins;
// construction tolerates thin liquidity and heavier leverage.
var industryAdjustments = map[string]IndustryAdjustment{
	domain.IndustryGeneral:       neutralAdjustment,
	domain.IndustryManufacturing: neutralAdjustment,
	domain.IndustryLogistics:     neutralAdjustment,
	domain.IndustryTechnology:    {Liquidity: 0.9, Debt: 1.1, Margin: 1.2},
	domain.IndustryServices:      {Liquidity: 1.1, Debt: 0.9, Margin: 1.1},
	domain.IndustryConstruction:  {Liquidity: 0.8, Debt: 1.2, Margin: 0.9},
}

// IndustryAdjustments returns a copy of the per-industry multipliers.
func IndustryAdjustments() map[string]IndustryAdjustment {
	out := make(map[string]IndustryAdjustment, len(industryAdjustments))
	for k, v := range industryAdjustments {
		out[k] = v
	}
	return out
}

// AdjustmentFor returns the multipliers for industry. Unknown labels are neutral.
func AdjustmentFor(industry string) IndustryAdjustment {
	if adj, ok := industryAdjustments[industry]; ok {
		return adj
	}
	return neutralAdjustment
}

// Base financial cut-points before industry scaling.
const (
	minLiquidity     = 1.0
	comfortLiquidity = 1.5
	strongLiquidity  = 2.0
	debtCeiling      = 0.7
	lowDebt          = 0.4
	marginBenchmark  = 0.15
)

// cutPoints are the financial thresholds in force for one supplier.
type cutPoints struct {
	minLiquidity     float64
	comfortLiquidity float64
	strongLiquidity  float64
	debtCeiling      float64
	lowDebt          float64
	marginBenchmark  float64
}

func financialCutPoints(f domain.FactSet) cutPoints {
	adj := AdjustmentFor(f.Text(domain.IndIndustry))
	return cutPoints{
		minLiquidity:     minLiquidity * adj.Liquidity,
		comfortLiquidity: comfortLiquidity * adj.Liquidity,
		strongLiquidity:  strongLiquidity * adj.Liquidity,
		debtCeiling:      debtCeiling * adj.Debt,
		lowDebt:          lowDebt * adj.Debt,
		marginBenchmark:  marginBenchmark * adj.Margin,
	}
}
