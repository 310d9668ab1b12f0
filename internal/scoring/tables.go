package scoring

// TablesVersion is the scoring table format this build understands.
const TablesVersion = 1

// Tables holds every tunable weight the scorer uses. The zero value is not
// usable; start from DefaultTables or Load.
//
// The weights are empirical. They were tuned against a hand-labeled set of
// lookup results and should be adjusted through the tables file, not in code.
type Tables struct {
	Version int `yaml:"version"`

	// Threshold is the minimum score a best candidate must reach to be
	// accepted. Below it, enrichment treats the search as a miss.
	Threshold float64 `yaml:"threshold"`

	// FinanceTerms and MathTerms map domain keywords to bonus weights.
	// The concept's category selects which table dominates; the other
	// contributes at SecondaryWeight.
	FinanceTerms    map[string]float64 `yaml:"financeTerms"`
	MathTerms       map[string]float64 `yaml:"mathTerms"`
	SecondaryWeight float64            `yaml:"secondaryWeight"`

	// Acronyms maps normalized short names to their expanded phrase.
	// AcronymBonus applies when a candidate's text carries the expansion.
	Acronyms     map[string]string `yaml:"acronyms"`
	AcronymBonus float64           `yaml:"acronymBonus"`

	// QualifierBonuses rewards disambiguation qualifiers that match the
	// domain, e.g. "Beta (finance)" over plain "Beta".
	QualifierBonuses map[string]float64 `yaml:"qualifierBonuses"`

	// StatCategories are category names that identify statistical or
	// mathematical entries; a candidate carrying one earns CategoryBonus.
	StatCategories []string `yaml:"statCategories"`
	CategoryBonus  float64  `yaml:"categoryBonus"`

	// IrrelevantTerms penalizes candidate text from unrelated domains.
	// BadQualifiers penalizes unwanted disambiguation qualifiers.
	IrrelevantTerms map[string]float64 `yaml:"irrelevantTerms"`
	BadQualifiers   map[string]float64 `yaml:"badQualifiers"`

	// CollisionPenalty applies when a statistical concept's candidate
	// carries a qualifier from an unrelated domain. Generic names like
	// "Beta" collide with films, places, and people; the qualifier is
	// the strongest signal that the candidate is not ours.
	CollisionPenalty float64 `yaml:"collisionPenalty"`

	// MaxRelated caps how many related concepts an accepted match pulls in.
	MaxRelated int `yaml:"maxRelated"`
}

// Expansion returns the expanded phrase for a normalized concept name that
// is a known acronym.
func (t *Tables) Expansion(normalizedName string) (string, bool) {
	expansion, ok := t.Acronyms[normalizedName]
	return expansion, ok
}

// DefaultTables returns the built-in scoring configuration used when no
// tables file is configured.
func DefaultTables() *Tables {
	return &Tables{
		Version:   TablesVersion,
		Threshold: 0.12,
		FinanceTerms: map[string]float64{
			"finance":       0.30,
			"financial":     0.30,
			"investment":    0.25,
			"portfolio":     0.25,
			"volatility":    0.25,
			"arbitrage":     0.25,
			"asset":         0.20,
			"risk":          0.20,
			"equity":        0.20,
			"pricing":       0.20,
			"capital":       0.20,
			"valuation":     0.20,
			"dividend":      0.20,
			"yield":         0.20,
			"hedge":         0.20,
			"derivative":    0.20,
			"interest rate": 0.20,
			"market":        0.15,
			"return":        0.15,
			"stock":         0.15,
			"bond":          0.15,
			"trading":       0.15,
			"economics":     0.15,
			"option":        0.15,
			"banking":       0.15,
		},
		MathTerms: map[string]float64{
			"statistics":         0.30,
			"statistical":        0.30,
			"probability":        0.25,
			"regression":         0.25,
			"variance":           0.25,
			"correlation":        0.25,
			"stochastic":         0.25,
			"standard deviation": 0.25,
			"time series":        0.25,
			"distribution":       0.20,
			"mathematical":       0.20,
			"coefficient":        0.20,
			"estimator":          0.20,
			"hypothesis":         0.20,
			"theorem":            0.20,
			"ratio":              0.15,
			"mean":               0.15,
			"measure":            0.15,
			"model":              0.10,
		},
		SecondaryWeight: 0.5,
		Acronyms: map[string]string{
			"capm":   "capital asset pricing model",
			"var":    "value at risk",
			"apt":    "arbitrage pricing theory",
			"etf":    "exchange-traded fund",
			"irr":    "internal rate of return",
			"npv":    "net present value",
			"wacc":   "weighted average cost of capital",
			"roi":    "return on investment",
			"roe":    "return on equity",
			"eps":    "earnings per share",
			"cdo":    "collateralized debt obligation",
			"cds":    "credit default swap",
			"mpt":    "modern portfolio theory",
			"emh":    "efficient market hypothesis",
			"arima":  "autoregressive integrated moving average",
			"garch":  "generalized autoregressive conditional heteroskedasticity",
			"ols":    "ordinary least squares",
			"ebitda": "earnings before interest taxes depreciation and amortization",
		},
		AcronymBonus: 0.40,
		QualifierBonuses: map[string]float64{
			"finance":     0.35,
			"statistics":  0.30,
			"economics":   0.25,
			"mathematics": 0.25,
			"probability": 0.25,
			"business":    0.15,
		},
		StatCategories: []string{
			"statistics",
			"statistical",
			"probability",
			"econometrics",
			"mathematical finance",
			"financial ratios",
			"actuarial science",
			"statistical ratios",
			"statistical deviation",
		},
		CategoryBonus: 0.20,
		IrrelevantTerms: map[string]float64{
			"surname":          0.35,
			"given name":       0.35,
			"film":             0.30,
			"movie":            0.30,
			"album":            0.30,
			"song":             0.30,
			"footballer":       0.30,
			"village":          0.30,
			"river":            0.30,
			"mountain":         0.30,
			"actor":            0.30,
			"singer":           0.30,
			"genus":            0.30,
			"species":          0.30,
			"galaxy":           0.30,
			"asteroid":         0.30,
			"chemical element": 0.30,
			"band":             0.25,
			"television":       0.25,
			"sport":            0.25,
			"town":             0.25,
			"politician":       0.25,
			"mineral":          0.25,
			"city":             0.20,
		},
		BadQualifiers: map[string]float64{
			"surname":    0.35,
			"film":       0.30,
			"album":      0.30,
			"song":       0.30,
			"band":       0.30,
			"tv series":  0.30,
			"crater":     0.30,
			"footballer": 0.30,
			"wrestler":   0.30,
			"city":       0.25,
			"village":    0.25,
			"river":      0.25,
			"name":       0.25,
			"mythology":  0.25,
		},
		CollisionPenalty: 0.50,
		MaxRelated:       5,
	}
}
