package domain

// Kind is the declared value type of an indicator.
type Kind string

const (
	// KindNumber is a ratio or percentage, carried as float64.
	KindNumber Kind = "number"

	// KindCount is a whole number of events, carried as int64.
	KindCount Kind = "count"

	// KindFlag is a yes/no attestation, carried as bool.
	KindFlag Kind = "flag"

	// KindText is a categorical label, carried as string.
	KindText Kind = "text"
)

// Indicator describes one supplier attribute accepted by the engine.
type Indicator struct {
	Name     string   `json:"name" yaml:"name"`
	Kind     Kind     `json:"kind" yaml:"kind"`
	Category Category `json:"category" yaml:"category"`

	// Required indicators must be supplied; the rest fall back to Default.
	Required bool `json:"required" yaml:"required"`
	Default  any  `json:"default,omitempty" yaml:"default,omitempty"`

	// Unit and Range are documentation only. Out-of-range values are
	// accepted and left for rules to flag.
	Unit        string `json:"unit,omitempty" yaml:"unit,omitempty"`
	Range       string `json:"range,omitempty" yaml:"range,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Schema is a versioned, read-only set of indicators.
type Schema struct {
	version    string
	indicators []Indicator
	index      map[string]int
}

// NewSchema builds a schema. Later declarations of a name replace earlier ones.
func NewSchema(version string, indicators ...Indicator) *Schema {
	s := &Schema{
		version: version,
		index:   make(map[string]int, len(indicators)),
	}
	for _, ind := range indicators {
		if i, ok := s.index[ind.Name]; ok {
			s.indicators[i] = ind
			continue
		}
		s.index[ind.Name] = len(s.indicators)
		s.indicators = append(s.indicators, ind)
	}
	return s
}

// Version returns the schema version string.
func (s *Schema) Version() string { return s.version }

// Lookup returns the indicator declared under name.
func (s *Schema) Lookup(name string) (Indicator, bool) {
	i, ok := s.index[name]
	if !ok {
		return Indicator{}, false
	}
	return s.indicators[i], true
}

// Indicators returns the declared indicators in declaration order.
func (s *Schema) Indicators() []Indicator {
	out := make([]Indicator, len(s.indicators))
	copy(out, s.indicators)
	return out
}

// Required returns the names of indicators that have no default.
func (s *Schema) Required() []string {
	var names []string
	for _, ind := range s.indicators {
		if ind.Required {
			names = append(names, ind.Name)
		}
	}
	return names
}

// Supplier indicator names.
const (
	IndCurrentRatio      = "current_ratio"
	IndDebtRatio         = "debt_ratio"
	IndProfitMargin      = "profit_margin"
	IndOnTimePaymentRate = "on_time_payment_rate"

	IndYearsInMarket      = "years_in_market"
	IndQualityCertified   = "quality_certified"
	IndProductionCapacity = "production_capacity"
	IndDefectRate         = "defect_rate"
	IndOnTimeDeliveryRate = "on_time_delivery_rate"

	IndLegalCompliance        = "legal_compliance"
	IndEnvironmentalCertified = "environmental_certified"
	IndInsuranceCurrent       = "insurance_current"
	IndActiveLawsuits         = "active_lawsuits"
	IndIndustry               = "industry"
	IndLicensesCurrent        = "licenses_current"
	IndTaxCertificateCurrent  = "tax_certificate_current"
	IndLabourCompliant        = "labour_compliant"

	IndMarketRating                = "market_rating"
	IndCustomerComplaints          = "customer_complaints"
	IndPositiveReferences          = "positive_references"
	IndSecurityIncidents           = "security_incidents"
	IndEthicalPracticesVerified    = "ethical_practices_verified"
	IndEnvironmentalResponsibility = "environmental_responsibility"
)

// SupplierSchemaVersion identifies the indicator contract below.
const SupplierSchemaVersion = "supplier/v1"

// Industry labels. Manufacturing requires environmental certification;
// the others only shift the financial cut-points.
const (
	IndustryGeneral       = "general"
	IndustryManufacturing = "manufacturing"
	IndustryServices      = "services"
	IndustryTechnology    = "technology"
	IndustryConstruction  = "construction"
	IndustryLogistics     = "logistics"
)

var supplierSchema = NewSchema(SupplierSchemaVersion,
	// Financial
	Indicator{Name: IndCurrentRatio, Kind: KindNumber, Category: CategoryFinancial, Required: true,
		Unit: "ratio", Range: "0-10", Description: "current assets divided by current liabilities"},
	Indicator{Name: IndDebtRatio, Kind: KindNumber, Category: CategoryFinancial, Required: true,
		Unit: "fraction", Range: "0-1", Description: "total liabilities divided by total assets"},
	Indicator{Name: IndProfitMargin, Kind: KindNumber, Category: CategoryFinancial, Required: true,
		Unit: "fraction", Range: "-1-1", Description: "net profit divided by revenue"},
	Indicator{Name: IndOnTimePaymentRate, Kind: KindNumber, Category: CategoryFinancial, Default: 100.0,
		Unit: "percent", Range: "0-100", Description: "share of obligations paid on time"},

	// Operational
	Indicator{Name: IndYearsInMarket, Kind: KindNumber, Category: CategoryOperational, Default: 0.0,
		Unit: "years", Range: "0-100", Description: "years the supplier has operated"},
	Indicator{Name: IndQualityCertified, Kind: KindFlag, Category: CategoryOperational, Default: false,
		Description: "holds a current quality management certification"},
	Indicator{Name: IndProductionCapacity, Kind: KindNumber, Category: CategoryOperational, Default: 100.0,
		Unit: "percent", Range: "0-100", Description: "capacity available to meet demand"},
	Indicator{Name: IndDefectRate, Kind: KindNumber, Category: CategoryOperational, Default: 0.0,
		Unit: "percent", Range: "0-100", Description: "share of deliveries with defects"},
	Indicator{Name: IndOnTimeDeliveryRate, Kind: KindNumber, Category: CategoryOperational, Required: true,
		Unit: "percent", Range: "0-100", Description: "share of deliveries made on time"},

	// Legal
	Indicator{Name: IndLegalCompliance, Kind: KindFlag, Category: CategoryLegal, Required: true,
		Description: "complies with applicable legal and regulatory obligations"},
	Indicator{Name: IndEnvironmentalCertified, Kind: KindFlag, Category: CategoryLegal, Default: false,
		Description: "holds a current environmental certification"},
	Indicator{Name: IndInsuranceCurrent, Kind: KindFlag, Category: CategoryLegal, Default: false,
		Description: "liability insurance is in force"},
	Indicator{Name: IndActiveLawsuits, Kind: KindCount, Category: CategoryLegal, Default: int64(0),
		Range: "0-50", Description: "open lawsuits against the supplier"},
	Indicator{Name: IndIndustry, Kind: KindText, Category: CategoryLegal, Default: IndustryGeneral,
		Range: "general, manufacturing, services, technology, construction, logistics", Description: "primary industry"},
	Indicator{Name: IndLicensesCurrent, Kind: KindFlag, Category: CategoryLegal, Default: false,
		Description: "operating licences are current; absent means not assessed"},
	Indicator{Name: IndTaxCertificateCurrent, Kind: KindFlag, Category: CategoryLegal, Default: false,
		Description: "tax good-standing certificate is current; absent means not assessed"},
	Indicator{Name: IndLabourCompliant, Kind: KindFlag, Category: CategoryLegal, Default: false,
		Description: "labour and social security obligations are met; absent means not assessed"},

	// Reputational
	Indicator{Name: IndMarketRating, Kind: KindNumber, Category: CategoryReputational, Required: true,
		Unit: "stars", Range: "1-5", Description: "average market rating"},
	Indicator{Name: IndCustomerComplaints, Kind: KindCount, Category: CategoryReputational, Default: int64(0),
		Range: "last 12 months", Description: "formal customer complaints"},
	Indicator{Name: IndPositiveReferences, Kind: KindCount, Category: CategoryReputational, Default: int64(0),
		Description: "verified positive commercial references"},
	Indicator{Name: IndSecurityIncidents, Kind: KindCount, Category: CategoryReputational, Default: int64(0),
		Range: "last 24 months", Description: "reported information security incidents"},
	Indicator{Name: IndEthicalPracticesVerified, Kind: KindFlag, Category: CategoryReputational, Default: false,
		Description: "ethical sourcing and labour practices have been audited"},
	Indicator{Name: IndEnvironmentalResponsibility, Kind: KindFlag, Category: CategoryReputational, Default: false,
		Description: "documented environmental responsibility programme; absent means not assessed"},
)

// SupplierSchema returns the supplier indicator schema. The returned
// schema is shared and must not be modified.
func SupplierSchema() *Schema {
	return supplierSchema
}
